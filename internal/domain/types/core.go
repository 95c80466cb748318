package types

// UserID identifies a user as issued by the identity provider.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// RoomID is the relay-assigned identifier of a room.
type RoomID string

// String returns the string form of the room identifier.
func (id RoomID) String() string { return string(id) }

// RoomCode is the short human-shareable code of a room.
type RoomCode string

// String returns the string form of the room code.
func (c RoomCode) String() string { return string(c) }

// MessageID is the relay-assigned, globally unique message identifier.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
