package membership

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

// Directory implements domain.MembershipService over a relay client.
type Directory struct {
	relay  domain.RelayClient
	logger *slog.Logger
}

// New returns a Directory. A nil logger discards output.
func New(relay domain.RelayClient, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Directory{relay: relay, logger: logger}
}

// ListMembers returns the roster of room ordered by join time.
func (d *Directory) ListMembers(ctx context.Context, room domain.RoomID) ([]domain.RoomMembership, error) {
	members, err := d.relay.ListMembers(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", room, err)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

// PublishSelf upserts the caller's roster row with publicKey. Publishing the
// same key twice leaves a single row.
func (d *Directory) PublishSelf(
	ctx context.Context,
	room domain.RoomID,
	user domain.UserID,
	displayName string,
	publicKey string,
) error {
	if _, err := crypto.ParsePublicKey(publicKey); err != nil {
		return fmt.Errorf("publish self: %w", err)
	}
	_, err := d.relay.PublishMember(ctx, domain.RoomMembership{
		RoomID:      room,
		UserID:      user,
		DisplayName: displayName,
		PublicKey:   publicKey,
	})
	if err != nil {
		return fmt.Errorf("publish self to %s: %w", room, err)
	}
	return nil
}

// ComputeSecrets derives one secret per roster member. The entry for self is
// derived against the local public key and seals the sender's own copy of
// each message. A member whose key cannot be used is reported in the failure
// list and skipped; the others are unaffected.
func (d *Directory) ComputeSecrets(
	room domain.RoomID,
	self domain.UserID,
	keyPair domain.KeyPair,
	members []domain.RoomMembership,
) (domain.SecretTable, []domain.PeerFailure) {
	info := []byte(room)
	table := make(domain.SecretTable, len(members)+1)
	var failures []domain.PeerFailure

	if secret, err := crypto.DeriveSharedSecret(keyPair.PrivateKey, keyPair.PublicKey, info); err != nil {
		failures = append(failures, domain.PeerFailure{UserID: self, Err: err})
	} else {
		table[self] = secret
	}

	for _, m := range members {
		if m.UserID == self {
			continue
		}
		if _, dup := table[m.UserID]; dup {
			continue
		}
		secret, err := crypto.DeriveSharedSecret(keyPair.PrivateKey, m.PublicKey, info)
		if err != nil {
			d.logger.Warn("cannot derive secret for member",
				"room_id", room.String(), "user_id", m.UserID.String(), "error", err)
			failures = append(failures, domain.PeerFailure{UserID: m.UserID, Err: err})
			continue
		}
		table[m.UserID] = secret
	}
	return table, failures
}

// EnsurePublished republishes keyPair's public key when the roster row for
// self is missing or holds a different key, for example after the local key
// file was lost and regenerated.
func (d *Directory) EnsurePublished(
	ctx context.Context,
	room domain.RoomID,
	self domain.Profile,
	keyPair domain.KeyPair,
	members []domain.RoomMembership,
) (bool, error) {
	for _, m := range members {
		if m.UserID == self.UserID && m.PublicKey == keyPair.PublicKey {
			return false, nil
		}
	}
	d.logger.Info("republishing public key", "room_id", room.String(), "user_id", self.UserID.String())
	if err := d.PublishSelf(ctx, room, self.UserID, self.DisplayName, keyPair.PublicKey); err != nil {
		return false, err
	}
	return true, nil
}

// Compile-time assertion that Directory implements domain.MembershipService.
var _ domain.MembershipService = (*Directory)(nil)
