package relayserver_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"roomseal/internal/relayserver"
)

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := "listen: 127.0.0.1:9999\nfeed_buffer: 8\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := relayserver.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" || cfg.FeedBuffer != 8 || cfg.LogFormat != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.DatabasePath != "roomrelay.db" || cfg.WriteTimeout != 10*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_RejectsBadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("log_format: xml\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := relayserver.LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}
