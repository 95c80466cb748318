package store

import (
	"path/filepath"
	"sync"

	"roomseal/internal/domain"
)

const profileFile = "profile.json"

// ProfileFileStore persists the local user profile to disk.
type ProfileFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewProfileFileStore returns a ProfileFileStore rooted at dir.
func NewProfileFileStore(dir string) *ProfileFileStore {
	return &ProfileFileStore{dir: dir}
}

// SaveProfile stores or replaces the profile.
func (s *ProfileFileStore) SaveProfile(profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, profileFile), profile, 0o600)
}

// LoadProfile returns the stored profile and whether one exists.
func (s *ProfileFileStore) LoadProfile() (domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var profile domain.Profile
	found, err := readJSON(filepath.Join(s.dir, profileFile), &profile)
	if err != nil || !found || profile.UserID == "" {
		return domain.Profile{}, false, err
	}
	return profile, true, nil
}

// Compile-time assertion that ProfileFileStore implements domain.ProfileStore.
var _ domain.ProfileStore = (*ProfileFileStore)(nil)
