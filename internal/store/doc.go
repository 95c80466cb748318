// Package store provides file-based persistence for roomseal's local state.
//
// It contains concrete implementations of the domain storage interfaces.
// All methods are concurrency-safe via internal locking and every write goes
// through a temp file followed by a rename, so readers never observe a
// partially written file. Stored files live under the configured home
// directory.
//
// The package includes stores for:
//   - Per-room keypairs, encrypted with a passphrase (RoomKeyFileStore)
//   - The local user profile (ProfileFileStore)
package store
