// Package room implements the room flows around the core: creating a room
// under a fresh code, joining by code or invite link, listing the rooms a
// user belongs to, and producing invite links.
package room
