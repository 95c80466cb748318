package types

// SessionState is the lifecycle state of an open room session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StateLive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FeedEventKind names a change-feed notification.
type FeedEventKind string

const (
	FeedMessageInsert FeedEventKind = "message.insert"
	FeedMemberUpsert  FeedEventKind = "member.upsert"
	// FeedMemberLeave carries only the room and user of the removed member.
	FeedMemberLeave FeedEventKind = "member.leave"
)

// FeedEvent is one notification from the relay change feed.
type FeedEvent struct {
	Kind    FeedEventKind   `cbor:"1,keyasint"`
	RoomID  RoomID          `cbor:"2,keyasint"`
	Message *Message        `cbor:"3,keyasint,omitempty"`
	Member  *RoomMembership `cbor:"4,keyasint,omitempty"`
}
