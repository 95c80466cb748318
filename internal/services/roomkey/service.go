package roomkey

import (
	"fmt"
	"log/slog"
	"sync"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
	"roomseal/internal/notify"
)

// Change is delivered to subscribers whenever a room keypair is created or
// replaced.
type Change struct {
	Code    domain.RoomCode
	KeyPair domain.KeyPair
}

// Service hands out room keypairs backed by an encrypted store.
type Service struct {
	store      domain.RoomKeyStore
	passphrase string
	logger     *slog.Logger

	mu      sync.Mutex
	changes notify.Hub[Change]
}

// New returns a room key service. A nil logger discards output.
func New(store domain.RoomKeyStore, passphrase string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      store,
		passphrase: passphrase,
		logger:     logger,
	}
}

// GetOrCreate returns the stored keypair for code, generating and persisting
// one when none exists. Concurrent callers for the same code all receive the
// same keypair.
func (s *Service) GetOrCreate(code domain.RoomCode) (domain.KeyPair, error) {
	s.mu.Lock()
	kp, created, err := s.getOrCreateLocked(code)
	s.mu.Unlock()
	if err != nil {
		return domain.KeyPair{}, err
	}
	if created {
		s.changes.Publish(Change{Code: code, KeyPair: kp})
	}
	return kp, nil
}

func (s *Service) getOrCreateLocked(code domain.RoomCode) (domain.KeyPair, bool, error) {
	kp, ok, err := s.store.LoadRoomKey(s.passphrase, code)
	if err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("load room key: %w", err)
	}
	if ok {
		return kp, false, nil
	}

	kp, err = crypto.GenerateKeyPair()
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	if err := s.store.SaveRoomKey(s.passphrase, code, kp); err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("save room key: %w", err)
	}
	s.logger.Info("generated room keypair", "room_code", code.String())
	return kp, true, nil
}

// Regenerate replaces the keypair for code with a fresh one. Messages sealed
// for the old public key become unreadable on this device.
func (s *Service) Regenerate(code domain.RoomCode) (domain.KeyPair, error) {
	s.mu.Lock()
	kp, err := crypto.GenerateKeyPair()
	if err == nil {
		err = s.store.SaveRoomKey(s.passphrase, code, kp)
	}
	s.mu.Unlock()
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("regenerate room key: %w", err)
	}

	s.logger.Warn("replaced room keypair", "room_code", code.String())
	s.changes.Publish(Change{Code: code, KeyPair: kp})
	return kp, nil
}

// Forget deletes the stored keypair for code. A later GetOrCreate generates a
// new one.
func (s *Service) Forget(code domain.RoomCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteRoomKey(code); err != nil {
		return fmt.Errorf("forget room key: %w", err)
	}
	s.logger.Info("deleted room keypair", "room_code", code.String())
	return nil
}

// Subscribe registers fn to be called synchronously after a keypair is
// created or replaced. The returned function unregisters it.
func (s *Service) Subscribe(fn func(domain.RoomCode, domain.KeyPair)) (cancel func()) {
	return s.changes.Subscribe(func(c Change) { fn(c.Code, c.KeyPair) })
}

// Compile-time assertion that Service implements domain.RoomKeyService.
var _ domain.RoomKeyService = (*Service)(nil)
