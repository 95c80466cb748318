package domain

import (
	interfaces "roomseal/internal/domain/interfaces"
	types "roomseal/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID              = types.UserID
	RoomID              = types.RoomID
	RoomCode            = types.RoomCode
	MessageID           = types.MessageID
	Fingerprint         = types.Fingerprint
	KeyPair             = types.KeyPair
	SecretTable         = types.SecretTable
	PeerFailure         = types.PeerFailure
	Profile             = types.Profile
	Room                = types.Room
	RoomSummary         = types.RoomSummary
	RoomMembership      = types.RoomMembership
	Invite              = types.Invite
	Sealed              = types.Sealed
	RecipientCiphertext = types.RecipientCiphertext
	Message             = types.Message
	OutgoingMessage     = types.OutgoingMessage
	TimelineEntry       = types.TimelineEntry
	SessionState        = types.SessionState
	FeedEventKind       = types.FeedEventKind
	FeedEvent           = types.FeedEvent
	DecryptionReason    = types.DecryptionReason
	DecryptionError     = types.DecryptionError
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	RoomKeyStore      = interfaces.RoomKeyStore
	ProfileStore      = interfaces.ProfileStore
	RelayClient       = interfaces.RelayClient
	Subscription      = interfaces.Subscription
	RoomKeyService    = interfaces.RoomKeyService
	MembershipService = interfaces.MembershipService
)

const (
	StateIdle    = types.StateIdle
	StateLoading = types.StateLoading
	StateLive    = types.StateLive
	StateClosed  = types.StateClosed

	FeedMessageInsert = types.FeedMessageInsert
	FeedMemberUpsert  = types.FeedMemberUpsert
	FeedMemberLeave   = types.FeedMemberLeave

	WrongKey      = types.WrongKey
	CorruptedData = types.CorruptedData
	EmptyResult   = types.EmptyResult
	NotAddressed  = types.NotAddressed
)

// Sentinel errors re-exported from the types subpackage.
var (
	ErrCryptoUnavailable  = types.ErrCryptoUnavailable
	ErrInvalidPeerKey     = types.ErrInvalidPeerKey
	ErrEmptyMessage       = types.ErrEmptyMessage
	ErrInvalidEncoding    = types.ErrInvalidEncoding
	ErrUnreachable        = types.ErrUnreachable
	ErrMembershipConflict = types.ErrMembershipConflict
	ErrRoomNotFound       = types.ErrRoomNotFound
	ErrRoomCodeTaken      = types.ErrRoomCodeTaken
	ErrNoPeerSecret       = types.ErrNoPeerSecret
	ErrUnknownSender      = types.ErrUnknownSender
	ErrSessionClosed      = types.ErrSessionClosed
	ErrWrongPassphrase    = types.ErrWrongPassphrase
)

// SentinelFor returns the display text for a decrypt failure.
func SentinelFor(err error) string { return types.SentinelFor(err) }
