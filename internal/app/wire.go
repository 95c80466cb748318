package app

import (
	"io"
	"log/slog"
	"net/http"

	"roomseal/internal/relay"
	"roomseal/internal/services/membership"
	"roomseal/internal/services/roomkey"
	"roomseal/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Logger   *slog.Logger
	Profiles *store.ProfileFileStore
	RoomKeys *roomkey.Service
	KeyStore *store.RoomKeyFileStore
	Members  *membership.Directory
	Relay    *relay.HTTP
	HTTP     *http.Client
}

// NewWire constructs the dependency graph from cfg. Log output goes to
// logOut at the configured level.
func NewWire(cfg Config, passphrase string, logOut io.Writer) (*Wire, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	// Request deadlines come from contexts; a client timeout would also cut
	// the long-lived change feed.
	httpClient := &http.Client{}
	rc := relay.NewHTTP(cfg.RelayURL)
	rc.HTTP = httpClient

	keyStore := store.NewRoomKeyFileStore(cfg.Home)
	return &Wire{
		Logger:   logger,
		Profiles: store.NewProfileFileStore(cfg.Home),
		RoomKeys: roomkey.New(keyStore, passphrase, logger.With("component", "roomkey")),
		KeyStore: keyStore,
		Members:  membership.New(rc, logger.With("component", "membership")),
		Relay:    rc,
		HTTP:     httpClient,
	}, nil
}
