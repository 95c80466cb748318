package interfaces

import domaintypes "roomseal/internal/domain/types"

// RoomKeyStore is the local durable storage of per-room keypairs. Writes are
// idempotent upserts keyed by room code.
type RoomKeyStore interface {
	SaveRoomKey(passphrase string, code domaintypes.RoomCode, keyPair domaintypes.KeyPair) error
	LoadRoomKey(passphrase string, code domaintypes.RoomCode) (domaintypes.KeyPair, bool, error)
	DeleteRoomKey(code domaintypes.RoomCode) error
}
