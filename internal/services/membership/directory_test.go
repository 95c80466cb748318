package membership_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
	"roomseal/internal/relayserver/relaytest"
	"roomseal/internal/services/membership"
)

func mustKeyPair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestComputeSecrets_SymmetricAndIsolated(t *testing.T) {
	dir := membership.New(nil, nil)
	alice, bob := mustKeyPair(t), mustKeyPair(t)
	members := []domain.RoomMembership{
		{UserID: "alice", PublicKey: alice.PublicKey},
		{UserID: "bob", PublicKey: bob.PublicKey},
		{UserID: "mallory", PublicKey: "bm90IGEga2V5"},
	}

	aliceTable, failures := dir.ComputeSecrets("room", "alice", alice, members)
	if len(failures) != 1 || failures[0].UserID != "mallory" || !errors.Is(failures[0].Err, domain.ErrInvalidPeerKey) {
		t.Fatalf("failures = %+v", failures)
	}
	if aliceTable.Peers("alice") != 1 {
		t.Fatalf("peers = %d, want 1", aliceTable.Peers("alice"))
	}
	if _, ok := aliceTable["alice"]; !ok {
		t.Fatal("self secret missing")
	}

	bobTable, _ := dir.ComputeSecrets("room", "bob", bob, members)
	if !bytes.Equal(aliceTable["bob"], bobTable["alice"]) {
		t.Fatal("alice and bob derived different secrets")
	}
}

func TestPublishSelf_IdempotentAndSelfHeal(t *testing.T) {
	ctx := context.Background()
	relay := relaytest.Start(t).Client()
	dir := membership.New(relay, nil)

	room, err := relay.CreateRoom(ctx, "R", "HEAL01", "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	kp := mustKeyPair(t)
	for i := 0; i < 2; i++ {
		if err := dir.PublishSelf(ctx, room.ID, "alice", "Alice", kp.PublicKey); err != nil {
			t.Fatalf("PublishSelf: %v", err)
		}
	}
	members, err := dir.ListMembers(ctx, room.ID)
	if err != nil || len(members) != 1 {
		t.Fatalf("ListMembers: %+v, %v", members, err)
	}

	self := domain.Profile{UserID: "alice", DisplayName: "Alice"}
	republished, err := dir.EnsurePublished(ctx, room.ID, self, kp, members)
	if err != nil || republished {
		t.Fatalf("EnsurePublished with matching key: %v, %v", republished, err)
	}

	// Local key lost and regenerated: roster must follow.
	fresh := mustKeyPair(t)
	republished, err = dir.EnsurePublished(ctx, room.ID, self, fresh, members)
	if err != nil || !republished {
		t.Fatalf("EnsurePublished with new key: %v, %v", republished, err)
	}
	members, _ = dir.ListMembers(ctx, room.ID)
	if len(members) != 1 || members[0].PublicKey != fresh.PublicKey {
		t.Fatalf("roster not updated: %+v", members)
	}
}

func TestPublishSelf_RejectsInvalidKey(t *testing.T) {
	dir := membership.New(relaytest.Start(t).Client(), nil)
	err := dir.PublishSelf(context.Background(), "room", "alice", "Alice", "garbage")
	if !errors.Is(err, domain.ErrInvalidPeerKey) {
		t.Fatalf("expected ErrInvalidPeerKey, got %v", err)
	}
}
