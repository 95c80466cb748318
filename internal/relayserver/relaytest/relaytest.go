// Package relaytest starts an in-process relay backed by a temporary SQLite
// database, for tests of code that talks to the relay.
package relaytest

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"roomseal/internal/relay"
	"roomseal/internal/relayserver"
)

// Relay is a running test relay.
type Relay struct {
	URL    string
	Store  *relayserver.Store
	Server *relayserver.Server
}

// Start launches a relay that is shut down when the test ends.
func Start(t testing.TB) *Relay {
	t.Helper()

	store, err := relayserver.OpenStore(relayserver.StoreConfig{
		Path: filepath.Join(t.TempDir(), "relay.db"),
	})
	if err != nil {
		t.Fatalf("open relay store: %v", err)
	}
	cfg := relayserver.DefaultConfig()
	srv := relayserver.NewServer(store, cfg, nil)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})
	return &Relay{URL: ts.URL, Store: store, Server: srv}
}

// Client returns a relay client pointed at r.
func (r *Relay) Client() *relay.HTTP { return relay.NewHTTP(r.URL) }
