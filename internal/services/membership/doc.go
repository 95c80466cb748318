// Package membership reads room rosters from the relay, publishes this
// device's public key, and derives the per-member secret table.
//
// Nothing here is cached: every ComputeSecrets call works from the roster it
// is given, so a roster change is picked up by simply recomputing.
package membership
