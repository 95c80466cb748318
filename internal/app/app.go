package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"roomseal/internal/domain"
	"roomseal/internal/services/message"
	"roomseal/internal/services/room"
)

// ErrNoProfile is returned when a command needs the local profile before
// init has created it.
var ErrNoProfile = errors.New("no local profile; run init first")

// App is the shared context of CLI commands.
type App struct {
	Config Config
	*Wire
}

// New returns an App over an already built Wire.
func New(cfg Config, wire *Wire) *App {
	return &App{Config: cfg, Wire: wire}
}

// WithTimeout bounds ctx by the configured request timeout.
func (a *App) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Config.RequestTimeout)
}

// Profile returns the local profile.
func (a *App) Profile() (domain.Profile, error) {
	p, ok, err := a.Profiles.LoadProfile()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrNoProfile
	}
	return p, nil
}

// InitProfile creates the local profile with a random user id, or renames
// the existing one. It reports whether a new profile was created.
func (a *App) InitProfile(displayName string) (domain.Profile, bool, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = a.Config.DisplayName
	}
	if displayName == "" {
		return domain.Profile{}, false, errors.New("display name is required")
	}

	p, found, err := a.Profiles.LoadProfile()
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	if !found {
		p.UserID = domain.UserID(uuid.NewString())
	}
	p.DisplayName = displayName
	if err := a.Profiles.SaveProfile(p); err != nil {
		return domain.Profile{}, false, fmt.Errorf("save profile: %w", err)
	}
	a.Logger.Info("profile saved", "user_id", p.UserID.String(), "created", !found)
	return p, !found, nil
}

// Rooms returns the room service for the local profile.
func (a *App) Rooms() (*room.Service, error) {
	p, err := a.Profile()
	if err != nil {
		return nil, err
	}
	return room.New(a.Relay, a.RoomKeys, a.Members, p, a.Logger.With("component", "room")), nil
}

// OpenSession opens a live session on r. The caller must Close it.
func (a *App) OpenSession(ctx context.Context, r domain.Room) (*message.Session, error) {
	p, err := a.Profile()
	if err != nil {
		return nil, err
	}
	s := message.New(message.Config{
		Room:    r,
		Self:    p,
		Keys:    a.RoomKeys,
		Members: a.Members,
		Relay:   a.Relay,
		Logger:  a.Logger.With("component", "session"),
	})
	if err := s.Open(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", r.Code, err)
	}
	return s, nil
}

// LocalRoomCodes reports which rooms have a keypair stored on this device.
func (a *App) LocalRoomCodes() (map[domain.RoomCode]bool, error) {
	codes, err := a.KeyStore.ListRoomCodes()
	if err != nil {
		return nil, fmt.Errorf("list room keys: %w", err)
	}
	local := make(map[domain.RoomCode]bool, len(codes))
	for _, c := range codes {
		local[c] = true
	}
	return local, nil
}
