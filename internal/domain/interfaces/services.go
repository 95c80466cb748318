package interfaces

import (
	"context"

	domaintypes "roomseal/internal/domain/types"
)

// RoomKeyService hands out this device's keypair for a room.
type RoomKeyService interface {
	GetOrCreate(code domaintypes.RoomCode) (domaintypes.KeyPair, error)
	Regenerate(code domaintypes.RoomCode) (domaintypes.KeyPair, error)
	Subscribe(fn func(domaintypes.RoomCode, domaintypes.KeyPair)) (cancel func())
	// Forget deletes the local keypair for code.
	Forget(code domaintypes.RoomCode) error
}

// MembershipService reads the roster and derives the peer secret table.
type MembershipService interface {
	ListMembers(ctx context.Context, room domaintypes.RoomID) ([]domaintypes.RoomMembership, error)
	PublishSelf(
		ctx context.Context,
		room domaintypes.RoomID,
		user domaintypes.UserID,
		displayName string,
		publicKey string,
	) error
	ComputeSecrets(
		room domaintypes.RoomID,
		self domaintypes.UserID,
		keyPair domaintypes.KeyPair,
		members []domaintypes.RoomMembership,
	) (domaintypes.SecretTable, []domaintypes.PeerFailure)
	// EnsurePublished republishes the local public key when the roster holds
	// a different one (or none) for self, and reports whether it did.
	EnsurePublished(
		ctx context.Context,
		room domaintypes.RoomID,
		self domaintypes.Profile,
		keyPair domaintypes.KeyPair,
		members []domaintypes.RoomMembership,
	) (bool, error)
}
