package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

const (
	roomsDir   = "rooms"
	roomKeyExt = ".key"
)

// RoomKeyFileStore persists one encrypted keypair per room code under
// <dir>/rooms/<CODE>.key.
type RoomKeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewRoomKeyFileStore returns a RoomKeyFileStore rooted at dir.
func NewRoomKeyFileStore(dir string) *RoomKeyFileStore {
	return &RoomKeyFileStore{dir: dir}
}

// SaveRoomKey encrypts and writes the keypair for code, replacing any
// previous one.
func (s *RoomKeyFileStore) SaveRoomKey(passphrase string, code domain.RoomCode, kp domain.KeyPair) error {
	path, err := s.path(code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(kp)
	if err != nil {
		return err
	}
	defer crypto.Wipe(raw)

	N, r, p := scryptParamsDefault()
	ct, err := seal(passphrase, raw, []byte(code), N, r, p)
	if err != nil {
		return fmt.Errorf("seal room key %s: %w", code, err)
	}
	return writeFile(path, ct, 0o600)
}

// LoadRoomKey reads and decrypts the keypair for code. A missing file is
// reported as ok == false with a nil error. A pair whose halves do not belong
// together is rejected.
func (s *RoomKeyFileStore) LoadRoomKey(passphrase string, code domain.RoomCode) (domain.KeyPair, bool, error) {
	path, err := s.path(code)
	if err != nil {
		return domain.KeyPair{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(path)
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	if b == nil {
		return domain.KeyPair{}, false, nil
	}
	pt, err := open(passphrase, b, []byte(code))
	if err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("open room key %s: %w", code, err)
	}
	defer crypto.Wipe(pt)

	var kp domain.KeyPair
	if err := json.Unmarshal(pt, &kp); err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("decode room key %s: %w", code, err)
	}
	if kp.IsZero() {
		return domain.KeyPair{}, false, nil
	}
	pub, err := crypto.PublicKeyOf(kp.PrivateKey)
	if err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("room key %s: %w", code, err)
	}
	if pub != kp.PublicKey {
		return domain.KeyPair{}, false, fmt.Errorf("room key %s: stored public key does not match the private key", code)
	}
	return kp, true, nil
}

// DeleteRoomKey removes the key file for code. Deleting a missing key is not
// an error.
func (s *RoomKeyFileStore) DeleteRoomKey(code domain.RoomCode) error {
	path, err := s.path(code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ListRoomCodes returns the codes that have a stored key, in directory order.
func (s *RoomKeyFileStore) ListRoomCodes() ([]domain.RoomCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, roomsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []domain.RoomCode
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, roomKeyExt) {
			continue
		}
		out = append(out, domain.RoomCode(strings.TrimSuffix(name, roomKeyExt)))
	}
	return out, nil
}

func (s *RoomKeyFileStore) path(code domain.RoomCode) (string, error) {
	c := string(code)
	if c == "" || strings.ContainsAny(c, `/\.`) {
		return "", fmt.Errorf("invalid room code %q", c)
	}
	return filepath.Join(s.dir, roomsDir, c+roomKeyExt), nil
}

// Compile-time assertion that RoomKeyFileStore implements domain.RoomKeyStore.
var _ domain.RoomKeyStore = (*RoomKeyFileStore)(nil)
