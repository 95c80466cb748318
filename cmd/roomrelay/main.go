package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"roomseal/internal/relayserver"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		listen     string
		dbPath     string
		logFormat  string
		logLevel   string
	)
	flagSet := pflag.NewFlagSet("roomrelay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "YAML config file")
	flagSet.StringVar(&listen, "listen", "", "listen address (default :8080)")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (default roomrelay.db)")
	flagSet.StringVar(&logFormat, "log-format", "", "log format: text or json")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := relayserver.DefaultConfig()
	if configPath != "" {
		loaded, err := relayserver.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := relayserver.OpenStore(relayserver.StoreConfig{
		Path:     cfg.DatabasePath,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           relayserver.NewServer(store, cfg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Feed handlers watch the request context, so cancelling the base
		// context on shutdown ends hijacked WebSocket connections too.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", cfg.Listen, "database", cfg.DatabasePath)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, cfg relayserver.Config) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
