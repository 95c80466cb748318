package message_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
	"roomseal/internal/services/membership"
	"roomseal/internal/services/message"
	"roomseal/internal/services/roomkey"
	"roomseal/internal/store"
)

var errUnsupported = errors.New("not supported by fakeRelay")

// fakeRelay serves a fixed roster and history and hands out subscriptions
// whose events the test pushes directly.
type fakeRelay struct {
	mu      sync.Mutex
	members []domain.RoomMembership
	history []domain.Message
	subs    []*fakeSub
}

var _ domain.RelayClient = (*fakeRelay)(nil)

func (f *fakeRelay) CreateRoom(context.Context, string, domain.RoomCode, domain.UserID) (domain.Room, error) {
	return domain.Room{}, errUnsupported
}

func (f *fakeRelay) FetchRoomByCode(context.Context, domain.RoomCode) (domain.Room, error) {
	return domain.Room{}, errUnsupported
}

func (f *fakeRelay) ListRooms(context.Context, domain.UserID) ([]domain.RoomSummary, error) {
	return nil, errUnsupported
}

func (f *fakeRelay) ListMembers(context.Context, domain.RoomID) ([]domain.RoomMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RoomMembership(nil), f.members...), nil
}

func (f *fakeRelay) JoinRoom(context.Context, domain.RoomMembership) (domain.RoomMembership, error) {
	return domain.RoomMembership{}, errUnsupported
}

func (f *fakeRelay) LeaveRoom(context.Context, domain.RoomID, domain.UserID) error {
	return errUnsupported
}

func (f *fakeRelay) PublishMember(_ context.Context, m domain.RoomMembership) (domain.RoomMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.members {
		if f.members[i].UserID == m.UserID {
			f.members[i].PublicKey = m.PublicKey
			return f.members[i], nil
		}
	}
	f.members = append(f.members, m)
	return m, nil
}

func (f *fakeRelay) ListMessages(context.Context, domain.RoomID) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.history...), nil
}

func (f *fakeRelay) InsertMessage(context.Context, domain.OutgoingMessage) (domain.Message, error) {
	return domain.Message{}, errUnsupported
}

func (f *fakeRelay) Subscribe(context.Context, domain.RoomID) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{events: make(chan domain.FeedEvent, 16)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeRelay) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeRelay) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

type fakeSub struct {
	events chan domain.FeedEvent
	once   sync.Once

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *fakeSub) Events() <-chan domain.FeedEvent { return s.events }

func (s *fakeSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSub) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.events) })
	return nil
}

// drop ends the feed from the relay's side.
func (s *fakeSub) drop(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.once.Do(func() { close(s.events) })
}

func (s *fakeSub) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSub) push(msg domain.Message) {
	s.events <- domain.FeedEvent{Kind: domain.FeedMessageInsert, RoomID: msg.RoomID, Message: &msg}
}

var fakeRoom = domain.Room{ID: "room-1", Name: "Fake", Code: "FAKE01"}

type fakeRoomSetup struct {
	relay   *fakeRelay
	alice   domain.KeyPair
	bob     domain.KeyPair
	session *message.Session
}

// openFake opens alice's session against a fake relay whose roster holds
// alice, bob and any extra members.
func openFake(t *testing.T, history []domain.Message, extra ...domain.RoomMembership) *fakeRoomSetup {
	t.Helper()
	keys := roomkey.New(store.NewRoomKeyFileStore(t.TempDir()), "pass", nil)
	aliceKey, err := keys.GetOrCreate(fakeRoom.Code)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	bobKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	relay := &fakeRelay{
		members: append([]domain.RoomMembership{
			{RoomID: fakeRoom.ID, UserID: "alice", DisplayName: "Alice", PublicKey: aliceKey.PublicKey},
			{RoomID: fakeRoom.ID, UserID: "bob", DisplayName: "Bob", PublicKey: bobKey.PublicKey},
		}, extra...),
		history: history,
	}
	s := message.New(message.Config{
		Room:    fakeRoom,
		Self:    domain.Profile{UserID: "alice", DisplayName: "Alice"},
		Keys:    keys,
		Members: membership.New(relay, nil),
		Relay:   relay,
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return &fakeRoomSetup{relay: relay, alice: aliceKey, bob: bobKey, session: s}
}

// sealedFor builds a message from sender addressed only to alice.
func sealedFor(t *testing.T, alicePub string, sender domain.UserID, senderKey domain.KeyPair, id domain.MessageID, text string) domain.Message {
	t.Helper()
	secret, err := crypto.DeriveSharedSecret(senderKey.PrivateKey, alicePub, []byte(fakeRoom.ID))
	if err != nil {
		t.Fatalf("DeriveSharedSecret: %v", err)
	}
	sealed, err := crypto.Encrypt(text, secret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return domain.Message{
		ID:           id,
		RoomID:       fakeRoom.ID,
		SenderUserID: sender,
		SenderName:   string(sender),
		Ciphertexts:  []domain.RecipientCiphertext{{RecipientUserID: "alice", Sealed: sealed}},
		CreatedAt:    time.Now(),
	}
}

func TestFeed_ReplayedIDsMergeOnce(t *testing.T) {
	// m1 carries no copy for alice; only its id matters for the merge.
	m1 := domain.Message{ID: "m1", RoomID: fakeRoom.ID, SenderUserID: "bob", SenderName: "bob"}
	f := openFake(t, []domain.Message{m1})

	m2 := sealedFor(t, f.alice.PublicKey, "bob", f.bob, "m2", "second")
	m3 := sealedFor(t, f.alice.PublicKey, "bob", f.bob, "m3", "third")
	sub := f.relay.sub(0)
	sub.push(m1)
	sub.push(m2)
	sub.push(m2)
	sub.push(m3)
	// Events are handled in order, so m3 arriving means the replays were seen.
	waitFor(t, "m3", func() bool { return hasText(f.session, "third") })

	got := f.session.Timeline()
	if len(got) != 3 {
		t.Fatalf("timeline has %d entries, want 3: %+v", len(got), got)
	}
	count := map[domain.MessageID]int{}
	for _, e := range got {
		count[e.Message.ID]++
	}
	for _, id := range []domain.MessageID{"m1", "m2", "m3"} {
		if count[id] != 1 {
			t.Fatalf("message %s appears %d times", id, count[id])
		}
	}
	if got[1].Plaintext != "second" {
		t.Fatalf("m2 plaintext = %q", got[1].Plaintext)
	}
}

func TestFeed_UnknownSenderAndBadMemberKey(t *testing.T) {
	f := openFake(t, nil, domain.RoomMembership{
		RoomID: fakeRoom.ID, UserID: "mallory", DisplayName: "Mallory", PublicKey: "not-a-key",
	})
	s := f.session

	if s.Peers() != 1 {
		t.Fatalf("Peers() = %d, want 1", s.Peers())
	}
	failures := s.PeerFailures()
	if len(failures) != 1 || failures[0].UserID != "mallory" || failures[0].Err == nil {
		t.Fatalf("PeerFailures() = %+v", failures)
	}

	ghostKey, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sub := f.relay.sub(0)
	sub.push(sealedFor(t, f.alice.PublicKey, "ghost", ghostKey, "g1", "boo"))
	sub.push(sealedFor(t, f.alice.PublicKey, "bob", f.bob, "b1", "hello"))
	waitFor(t, "bob's message", func() bool { return hasText(s, "hello") })

	entry := s.Timeline()[0]
	if entry.Message.ID != "g1" || entry.Decrypted() {
		t.Fatalf("unexpected first entry %+v", entry)
	}
	if entry.Plaintext != "[Unable to decrypt]" {
		t.Fatalf("sentinel = %q", entry.Plaintext)
	}
	if !errors.Is(entry.Failure, domain.ErrUnknownSender) {
		t.Fatalf("failure %v does not wrap ErrUnknownSender", entry.Failure)
	}
	var de *domain.DecryptionError
	if !errors.As(entry.Failure, &de) || de.Reason != domain.WrongKey {
		t.Fatalf("failure = %v, want a WrongKey DecryptionError", entry.Failure)
	}
	if s.State() != domain.StateLive {
		t.Fatalf("state = %s, want live", s.State())
	}
}

func TestFeed_LostFeedIsClosedBeforeResubscribe(t *testing.T) {
	f := openFake(t, nil)
	first := f.relay.sub(0)
	first.drop(errors.New("connection reset"))

	waitFor(t, "resubscribe", func() bool { return f.relay.subscriptions() == 2 })
	if !first.wasClosed() {
		t.Fatal("lost subscription was not closed")
	}

	f.relay.sub(1).push(sealedFor(t, f.alice.PublicKey, "bob", f.bob, "after", "back again"))
	waitFor(t, "message on the new feed", func() bool { return hasText(f.session, "back again") })
	if f.session.State() != domain.StateLive {
		t.Fatalf("state = %s, want live", f.session.State())
	}
}
