package interfaces

import (
	"context"

	domaintypes "roomseal/internal/domain/types"
)

// RelayClient is how we talk to the persistence and change-feed service.
type RelayClient interface {
	CreateRoom(
		ctx context.Context,
		name string,
		code domaintypes.RoomCode,
		createdBy domaintypes.UserID,
	) (domaintypes.Room, error)
	FetchRoomByCode(ctx context.Context, code domaintypes.RoomCode) (domaintypes.Room, error)
	ListRooms(ctx context.Context, user domaintypes.UserID) ([]domaintypes.RoomSummary, error)

	ListMembers(ctx context.Context, room domaintypes.RoomID) ([]domaintypes.RoomMembership, error)
	// JoinRoom inserts a membership and fails with ErrMembershipConflict when
	// the user is already a member.
	JoinRoom(ctx context.Context, member domaintypes.RoomMembership) (domaintypes.RoomMembership, error)
	// LeaveRoom removes the user's membership. Leaving a room one is not a
	// member of is not an error.
	LeaveRoom(ctx context.Context, room domaintypes.RoomID, user domaintypes.UserID) error
	// PublishMember upserts the member row keyed by (room, user).
	PublishMember(ctx context.Context, member domaintypes.RoomMembership) (domaintypes.RoomMembership, error)

	ListMessages(ctx context.Context, room domaintypes.RoomID) ([]domaintypes.Message, error)
	InsertMessage(ctx context.Context, msg domaintypes.OutgoingMessage) (domaintypes.Message, error)

	// Subscribe opens the change feed for one room.
	Subscribe(ctx context.Context, room domaintypes.RoomID) (Subscription, error)
}

// Subscription delivers change-feed events until closed. Events is closed
// when the feed ends; Err then reports why.
type Subscription interface {
	Events() <-chan domaintypes.FeedEvent
	Err() error
	Close() error
}
