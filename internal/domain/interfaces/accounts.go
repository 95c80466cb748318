package interfaces

import domaintypes "roomseal/internal/domain/types"

// ProfileStore persists the local user profile.
type ProfileStore interface {
	SaveProfile(profile domaintypes.Profile) error
	LoadProfile() (domaintypes.Profile, bool, error)
}
