package message

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
	"roomseal/internal/notify"
)

// EventKind says what changed in a session.
type EventKind int

const (
	// EventState reports a state transition.
	EventState EventKind = iota + 1
	// EventMessage reports a new or re-decrypted timeline entry.
	EventMessage
	// EventRoster reports that the roster and secret table were recomputed.
	EventRoster
	// EventFeedLost reports that the change feed dropped; the session keeps
	// retrying in the background.
	EventFeedLost
)

// Event is delivered to session subscribers.
type Event struct {
	Kind  EventKind
	State domain.SessionState
	Entry domain.TimelineEntry
	Err   error
}

// Config wires a Session to its collaborators.
type Config struct {
	Room    domain.Room
	Self    domain.Profile
	Keys    domain.RoomKeyService
	Members domain.MembershipService
	Relay   domain.RelayClient
	Logger  *slog.Logger
}

// Session is the live, decrypted view of one room for the local user.
type Session struct {
	room    domain.Room
	self    domain.Profile
	keys    domain.RoomKeyService
	members domain.MembershipService
	relay   domain.RelayClient
	logger  *slog.Logger

	events notify.Hub[Event]
	rekey  chan struct{}

	mu       sync.Mutex
	state    domain.SessionState
	keyPair  domain.KeyPair
	roster   []domain.RoomMembership
	secrets  domain.SecretTable
	failures []domain.PeerFailure
	timeline []domain.TimelineEntry
	seen     map[domain.MessageID]int
	pending  []domain.FeedEvent
	sub      domain.Subscription

	cancelFeed func()
	cancelKeys func()
	done       chan struct{}
}

// New returns an idle session. Call Open to start it.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		room:    cfg.Room,
		self:    cfg.Self,
		keys:    cfg.Keys,
		members: cfg.Members,
		relay:   cfg.Relay,
		logger:  logger.With("room_id", cfg.Room.ID.String()),
		rekey:   make(chan struct{}, 1),
		state:   domain.StateIdle,
		seen:    make(map[domain.MessageID]int),
	}
}

// Open loads the room and goes Live. It may be called once; on failure the
// session is closed and the error returned.
func (s *Session) Open(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != domain.StateIdle {
		state := s.state
		s.mu.Unlock()
		if state == domain.StateClosed {
			return domain.ErrSessionClosed
		}
		return fmt.Errorf("open room session: already %s", state)
	}
	s.state = domain.StateLoading
	s.mu.Unlock()
	s.emit(Event{Kind: EventState, State: domain.StateLoading})

	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	keyPair, err := s.keys.GetOrCreate(s.room.Code)
	if err != nil {
		return fmt.Errorf("room key: %w", err)
	}
	s.mu.Lock()
	s.keyPair = keyPair
	s.mu.Unlock()
	cancelKeys := s.keys.Subscribe(s.onKeyChange)

	// The feed outlives Open's ctx; Close cancels it.
	feedCtx, cancelFeed := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancelKeys = cancelKeys
	s.cancelFeed = cancelFeed
	s.mu.Unlock()

	sub, err := s.relay.Subscribe(feedCtx, s.room.ID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.mu.Lock()
	s.sub = sub
	s.done = make(chan struct{})
	s.mu.Unlock()
	go s.run(feedCtx, sub)

	if err := s.loadRoster(ctx, true); err != nil {
		return err
	}

	history, err := s.relay.ListMessages(ctx, s.room.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.mu.Lock()
	for _, msg := range history {
		s.mergeLocked(s.decryptLocked(msg))
	}
	s.mu.Unlock()
	s.logger.Debug("history loaded", "messages", len(history))

	return s.goLive(ctx)
}

// goLive drains events buffered during loading and switches to Live. Member
// events force a roster reload before the buffered messages are decrypted.
func (s *Session) goLive(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.state == domain.StateClosed {
			s.mu.Unlock()
			return domain.ErrSessionClosed
		}
		rosterChanged := false
		var messages []domain.Message
		for _, ev := range s.pending {
			switch ev.Kind {
			case domain.FeedMemberUpsert, domain.FeedMemberLeave:
				rosterChanged = true
			case domain.FeedMessageInsert:
				if ev.Message != nil {
					messages = append(messages, *ev.Message)
				}
			}
		}
		if rosterChanged {
			// Keep message events queued until the new secrets exist.
			kept := s.pending[:0]
			for _, ev := range s.pending {
				if ev.Kind == domain.FeedMessageInsert {
					kept = append(kept, ev)
				}
			}
			s.pending = kept
			s.mu.Unlock()
			if err := s.loadRoster(ctx, false); err != nil {
				return err
			}
			continue
		}

		var merged []domain.TimelineEntry
		for _, msg := range messages {
			entry := s.decryptLocked(msg)
			if s.mergeLocked(entry) {
				merged = append(merged, entry)
			}
		}
		s.pending = nil
		s.state = domain.StateLive
		s.mu.Unlock()

		s.emit(Event{Kind: EventState, State: domain.StateLive})
		for _, e := range merged {
			s.emit(Event{Kind: EventMessage, Entry: e})
		}
		s.logger.Info("room session live", "buffered", len(messages))
		return nil
	}
}

// loadRoster fetches the roster, republishes the local key when the roster
// disagrees with it (heal), and recomputes the secret table.
func (s *Session) loadRoster(ctx context.Context, heal bool) error {
	members, err := s.members.ListMembers(ctx, s.room.ID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	s.mu.Lock()
	keyPair := s.keyPair
	s.mu.Unlock()

	if heal {
		republished, err := s.members.EnsurePublished(ctx, s.room.ID, s.self, keyPair, members)
		if err != nil {
			return fmt.Errorf("publish key: %w", err)
		}
		if republished {
			if members, err = s.members.ListMembers(ctx, s.room.ID); err != nil {
				return fmt.Errorf("load roster: %w", err)
			}
		}
	}

	table, failures := s.members.ComputeSecrets(s.room.ID, s.self.UserID, keyPair, members)

	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		wipeTable(table)
		return domain.ErrSessionClosed
	}
	wipeTable(s.secrets)
	s.roster = members
	s.secrets = table
	s.failures = failures
	redecrypted := s.redecryptLocked()
	s.mu.Unlock()

	for _, f := range failures {
		s.logger.Warn("no secret for member", "user_id", f.UserID.String(), "error", f.Err)
	}
	s.emit(Event{Kind: EventRoster})
	for _, e := range redecrypted {
		s.emit(Event{Kind: EventMessage, Entry: e})
	}
	return nil
}

func (s *Session) onKeyChange(code domain.RoomCode, kp domain.KeyPair) {
	if code != s.room.Code {
		return
	}
	s.mu.Lock()
	s.keyPair = kp
	s.mu.Unlock()
	select {
	case s.rekey <- struct{}{}:
	default:
	}
}

// Close stops the feed and wipes the secret table. Results of decrypts
// still in flight are discarded. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = domain.StateClosed
	wipeTable(s.secrets)
	s.secrets = nil
	s.pending = nil
	sub, cancelFeed, cancelKeys, done := s.sub, s.cancelFeed, s.cancelKeys, s.done
	s.mu.Unlock()

	if cancelKeys != nil {
		cancelKeys()
	}
	if cancelFeed != nil {
		cancelFeed()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	if done != nil {
		<-done
	}
	s.emit(Event{Kind: EventState, State: domain.StateClosed})
	return err
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Timeline returns a copy of the entries in arrival order.
func (s *Session) Timeline() []domain.TimelineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TimelineEntry, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// Roster returns the members as last loaded.
func (s *Session) Roster() []domain.RoomMembership {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomMembership, len(s.roster))
	copy(out, s.roster)
	return out
}

// Peers returns how many members other than self have a usable secret.
func (s *Session) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secrets.Peers(s.self.UserID)
}

// PeerFailures returns the members whose secret could not be derived.
func (s *Session) PeerFailures() []domain.PeerFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PeerFailure(nil), s.failures...)
}

// SafetyCode returns the code members compare out of band to check that
// everyone sees the same keys.
func (s *Session) SafetyCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return crypto.SafetyCode(s.room.ID, s.roster)
}

// Subscribe registers fn for session events. fn runs synchronously on the
// goroutine that caused the change and must not call back into blocking
// session methods.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	return s.events.Subscribe(fn)
}

func (s *Session) emit(ev Event) { s.events.Publish(ev) }

func wipeTable(t domain.SecretTable) {
	for _, secret := range t {
		crypto.Wipe(secret)
	}
}
