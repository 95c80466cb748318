package types

import "time"

// Room is a chat room as persisted by the relay.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	Code      RoomCode  `json:"room_code"`
	CreatedBy UserID    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomSummary is a room as listed for one member.
type RoomSummary struct {
	Room
	JoinedAt  time.Time `json:"joined_at"`
	IsCreator bool      `json:"is_creator"`
}

// RoomMembership is one member of a room together with the public key they
// published for it. At most one row exists per (room, user).
type RoomMembership struct {
	RoomID      RoomID    `json:"room_id"`
	UserID      UserID    `json:"user_id"`
	DisplayName string    `json:"user_name"`
	PublicKey   string    `json:"public_key"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Invite is the content of a shareable join link.
type Invite struct {
	Code RoomCode
	Name string
}
