// Package domain defines the data models and contracts shared across
// roomseal: rooms, memberships, sealed messages, change-feed events, the
// error taxonomy, and the interfaces services depend on. It contains plain
// types and interfaces only.
package domain
