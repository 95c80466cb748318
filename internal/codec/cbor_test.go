package codec_test

import (
	"bytes"
	"testing"
	"time"

	"roomseal/internal/codec"
	"roomseal/internal/domain"
)

func TestFeedEvent_PreservesMessage(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	ev := domain.FeedEvent{
		Kind:   domain.FeedMessageInsert,
		RoomID: "room-1",
		Message: &domain.Message{
			ID:           "m1",
			RoomID:       "room-1",
			SenderUserID: "alice",
			SenderName:   "Alice",
			Ciphertexts: []domain.RecipientCiphertext{
				{RecipientUserID: "bob", Sealed: domain.Sealed{Ciphertext: "Y3Q=", Nonce: "bm9uY2U="}},
			},
			CreatedAt: created,
		},
	}

	data, err := codec.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got domain.FeedEvent
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != ev.Kind || got.Member != nil || got.Message == nil {
		t.Fatalf("unexpected event shape: %+v", got)
	}
	if !got.Message.CreatedAt.Equal(created) {
		t.Fatalf("created_at lost precision: %v", got.Message.CreatedAt)
	}
	sealed, ok := got.Message.CiphertextFor("bob")
	if !ok || sealed.Ciphertext != "Y3Q=" || sealed.Nonce != "bm9uY2U=" {
		t.Fatalf("ciphertext copy lost: %+v", got.Message.Ciphertexts)
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	ev := domain.FeedEvent{
		Kind:   domain.FeedMemberUpsert,
		RoomID: "room-1",
		Member: &domain.RoomMembership{RoomID: "room-1", UserID: "bob", PublicKey: "cGs="},
	}
	a, err := codec.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := codec.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("encoding is not deterministic")
	}
}
