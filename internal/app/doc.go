// Package app wires application dependencies for the CLI.
//
// It loads Config from the home directory, builds the concrete stores, the
// relay client and the room services, and exposes them through App so
// commands share one dependency graph with a common logger and request
// timeout.
package app
