// Command roomrelay runs the persistence and change-feed service used by
// roomseal clients. It stores rooms, memberships and sealed messages in
// SQLite and pushes inserts to subscribers over WebSocket.
//
// Usage
//
//	roomrelay [--config relay.yaml] [--listen :8080] [--db roomrelay.db] [--log-format text|json]
//
// Flags override values from the config file; the file overrides built-in
// defaults. See internal/relayserver for the HTTP API.
//
// The relay never sees plaintext or private keys. It stores ciphertext and
// public keys only, and is meant to be run as an untrusted middleman.
package main
