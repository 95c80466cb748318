// Package roomkey owns this device's per-room key-exchange keypairs.
//
// A keypair is created the first time a room is used, persisted encrypted in
// local storage and reused afterwards. Other components learn about new or
// replaced keypairs through Subscribe instead of polling.
package roomkey
