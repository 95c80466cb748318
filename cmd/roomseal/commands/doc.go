// Package commands defines the roomseal CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local profile or change its display name
//   - create         Create a room and print its invite link
//   - join           Join a room by code or invite link
//   - rooms          List the rooms you belong to
//   - members        Show a room's roster and which members have a secret
//   - invite         Print the invite link of a room
//   - leave          Leave a room and delete its local keypair
//   - rekey          Replace your keypair for a room and publish it
//   - send           Encrypt and send one message to a room
//   - history        Print a room's decrypted timeline
//   - chat           Open a room interactively
//   - fingerprint    Print your key fingerprint and the room safety code
//
// # Implementation
//
// The root command loads <home>/config.yaml, applies flag overrides and
// builds the dependency graph (stores, relay client, services) before any
// subcommand runs. Commands that touch room keys resolve the passphrase from
// -p, the ROOMSEAL_PASSPHRASE environment variable, or a terminal prompt.
package commands
