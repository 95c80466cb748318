package message_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomseal/internal/domain"
	"roomseal/internal/relay"
	"roomseal/internal/relayserver/relaytest"
	"roomseal/internal/services/membership"
	"roomseal/internal/services/message"
	"roomseal/internal/services/room"
	"roomseal/internal/services/roomkey"
	"roomseal/internal/store"
)

type participant struct {
	profile domain.Profile
	keys    *roomkey.Service
	members *membership.Directory
	rooms   *room.Service
	relay   *relay.HTTP
}

func newParticipant(t *testing.T, client *relay.HTTP, user domain.UserID, name string) *participant {
	t.Helper()
	p := &participant{
		profile: domain.Profile{UserID: user, DisplayName: name},
		keys:    roomkey.New(store.NewRoomKeyFileStore(t.TempDir()), "pass", nil),
		members: membership.New(client, nil),
		relay:   client,
	}
	p.rooms = room.New(client, p.keys, p.members, p.profile, nil)
	return p
}

func (p *participant) open(t *testing.T, r domain.Room) *message.Session {
	t.Helper()
	s := message.New(message.Config{
		Room:    r,
		Self:    p.profile,
		Keys:    p.keys,
		Members: p.members,
		Relay:   p.relay,
	})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("%s: open session: %v", p.profile.UserID, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func hasText(s *message.Session, text string) bool {
	for _, e := range s.Timeline() {
		if e.Decrypted() && e.Plaintext == text {
			return true
		}
	}
	return false
}

func TestTwoPartyChat(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	bob := newParticipant(t, client, "bob", "Bob")

	r, err := alice.rooms.Create(ctx, "Team Chat")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := bob.rooms.Join(ctx, string(r.Code)); err != nil {
		t.Fatalf("Join: %v", err)
	}

	as := alice.open(t, r)
	bs := bob.open(t, r)
	if as.State() != domain.StateLive || bs.State() != domain.StateLive {
		t.Fatalf("states: alice %s, bob %s", as.State(), bs.State())
	}
	waitFor(t, "alice to see bob", func() bool { return as.Peers() == 1 })

	msg, err := as.Send(ctx, "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msg.Ciphertexts) != 2 {
		t.Fatalf("expected a copy for each member, got %d", len(msg.Ciphertexts))
	}

	waitFor(t, "bob to receive", func() bool { return hasText(bs, "hi") })
	waitFor(t, "alice to receive her own copy", func() bool { return hasText(as, "hi") })

	got := bs.Timeline()
	if len(got) != 1 || got[0].Message.SenderName != "Alice" || got[0].Message.ID != msg.ID {
		t.Fatalf("bob's timeline: %+v", got)
	}
	if len(as.Timeline()) != 1 {
		t.Fatalf("alice's timeline has %d entries, want 1", len(as.Timeline()))
	}

	if _, err := bs.Send(ctx, "hello back"); err != nil {
		t.Fatalf("bob Send: %v", err)
	}
	waitFor(t, "alice to receive reply", func() bool { return hasText(as, "hello back") })

	if as.SafetyCode() != bs.SafetyCode() {
		t.Fatal("members disagree on the safety code")
	}
}

func TestSend_NoPeerSecret(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")

	r, err := alice.rooms.Create(ctx, "Solo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := alice.open(t, r)

	if _, err := s.Send(ctx, "anyone?"); !errors.Is(err, domain.ErrNoPeerSecret) {
		t.Fatalf("expected ErrNoPeerSecret, got %v", err)
	}
	if _, err := s.Send(ctx, "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	c := message.NewComposer(s)
	c.SetDraft("anyone?")
	if _, err := c.Submit(ctx); err == nil {
		t.Fatal("expected submit to fail")
	}
	if c.Draft() != "anyone?" {
		t.Fatalf("draft lost after failed send: %q", c.Draft())
	}

	msgs, err := client.ListMessages(ctx, r.ID)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("nothing should reach the relay: %d, %v", len(msgs), err)
	}
}

func TestMemberJoinsWhileLive(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	bob := newParticipant(t, client, "bob", "Bob")

	r, err := alice.rooms.Create(ctx, "Later")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	as := alice.open(t, r)
	if as.Peers() != 0 {
		t.Fatalf("peers = %d before anyone joined", as.Peers())
	}

	if _, err := bob.rooms.Join(ctx, string(r.Code)); err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitFor(t, "roster update", func() bool { return as.Peers() == 1 })

	c := message.NewComposer(as)
	c.SetDraft("welcome")
	if _, err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.Draft() != "" {
		t.Fatalf("draft not cleared: %q", c.Draft())
	}

	bs := bob.open(t, r)
	waitFor(t, "bob to load history", func() bool { return hasText(bs, "welcome") })
}

func TestMemberLeavesWhileLive(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	bob := newParticipant(t, client, "bob", "Bob")

	r, err := alice.rooms.Create(ctx, "Team Chat")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := bob.rooms.Join(ctx, string(r.Code)); err != nil {
		t.Fatalf("Join: %v", err)
	}
	as := alice.open(t, r)
	bs := bob.open(t, r)
	waitFor(t, "alice to see bob", func() bool { return as.Peers() == 1 })

	if _, err := bob.rooms.Leave(ctx, string(r.Code)); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	waitFor(t, "alice to drop bob's secret", func() bool { return as.Peers() == 0 })
	waitFor(t, "bob's session to close", func() bool { return bs.State() == domain.StateClosed })

	if _, err := as.Send(ctx, "still there?"); !errors.Is(err, domain.ErrNoPeerSecret) {
		t.Fatalf("expected ErrNoPeerSecret after the only peer left, got %v", err)
	}
	if got := len(as.Roster()); got != 1 {
		t.Fatalf("alice's roster has %d members, want 1", got)
	}
}

func TestLateJoinerSeesSentinel(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	bob := newParticipant(t, client, "bob", "Bob")
	carol := newParticipant(t, client, "carol", "Carol")

	r, err := alice.rooms.Create(ctx, "History")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := bob.rooms.Join(ctx, string(r.Code)); err != nil {
		t.Fatalf("Join bob: %v", err)
	}
	as := alice.open(t, r)
	if _, err := as.Send(ctx, "before carol"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := carol.rooms.Join(ctx, string(r.Code)); err != nil {
		t.Fatalf("Join carol: %v", err)
	}
	cs := carol.open(t, r)

	entries := cs.Timeline()
	if len(entries) != 1 {
		t.Fatalf("carol's timeline has %d entries", len(entries))
	}
	e := entries[0]
	var de *domain.DecryptionError
	if e.Decrypted() || !errors.As(e.Failure, &de) || de.Reason != domain.NotAddressed {
		t.Fatalf("expected NotAddressed failure, got %+v", e)
	}
	if e.Plaintext != de.Sentinel() {
		t.Fatalf("plaintext = %q, want sentinel", e.Plaintext)
	}

	waitFor(t, "alice to see carol", func() bool { return as.Peers() == 2 })
	if _, err := as.Send(ctx, "hi carol"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, "carol to receive", func() bool { return hasText(cs, "hi carol") })
}

func TestMerge_Dedup(t *testing.T) {
	s := message.New(message.Config{
		Room: domain.Room{ID: "room-1", Code: "XJ2K9P"},
		Self: domain.Profile{UserID: "alice"},
	})
	entry := domain.TimelineEntry{
		Message:   domain.Message{ID: "m1", RoomID: "room-1", SenderUserID: "bob"},
		Plaintext: "hi",
	}
	if !s.Merge(entry) {
		t.Fatal("first merge should change the timeline")
	}
	if s.Merge(entry) {
		t.Fatal("second merge should be a no-op")
	}
	if n := len(s.Timeline()); n != 1 {
		t.Fatalf("timeline has %d entries, want 1", n)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	r, err := alice.rooms.Create(ctx, "Closing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := alice.open(t, r)

	var states []domain.SessionState
	s.Subscribe(func(ev message.Event) {
		if ev.Kind == message.EventState {
			states = append(states, ev.State)
		}
	})

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.State() != domain.StateClosed {
		t.Fatalf("state = %s", s.State())
	}
	if len(states) != 1 || states[0] != domain.StateClosed {
		t.Fatalf("state events: %v", states)
	}
	if _, err := s.Send(ctx, "late"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.Open(ctx); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on reopen, got %v", err)
	}
}

func TestOpen_RegeneratesLostKey(t *testing.T) {
	ctx := context.Background()
	client := relaytest.Start(t).Client()
	alice := newParticipant(t, client, "alice", "Alice")
	r, err := alice.rooms.Create(ctx, "Heal")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A fresh device for the same user has no local key for the room.
	fresh := newParticipant(t, client, "alice", "Alice")
	fresh.open(t, r)

	kp, err := fresh.keys.GetOrCreate(r.Code)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	members, err := client.ListMembers(ctx, r.ID)
	if err != nil || len(members) != 1 {
		t.Fatalf("members: %+v, %v", members, err)
	}
	if members[0].PublicKey != kp.PublicKey {
		t.Fatal("relay still holds the old public key")
	}
}
