package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"roomseal/internal/app"
)

const passphraseEnv = "ROOMSEAL_PASSPHRASE"

// noKeys marks commands that never open room keys and so need no passphrase.
const noKeys = "no-keys"

var (
	home       string
	passphrase string
	relayURL   string
	logLevel   string
	appCtx     *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "roomseal",
		Short:         "End-to-end encrypted room chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".roomseal")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if _, skip := cmd.Annotations[noKeys]; !skip {
				if err := resolvePassphrase(); err != nil {
					return err
				}
			}

			wire, err := app.NewWire(cfg, passphrase, os.Stderr)
			if err != nil {
				return err
			}
			appCtx = app.New(cfg, wire)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.roomseal)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting room keys (or $"+passphraseEnv+")")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		initCmd(),
		createCmd(),
		joinCmd(),
		roomsCmd(),
		membersCmd(),
		inviteCmd(),
		leaveCmd(),
		rekeyCmd(),
		sendCmd(),
		historyCmd(),
		chatCmd(),
		fingerprintCmd(),
	)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func resolvePassphrase() error {
	if passphrase != "" {
		return nil
	}
	if env := os.Getenv(passphraseEnv); env != "" {
		passphrase = env
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("passphrase required (-p or $" + passphraseEnv + ")")
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	if len(b) == 0 {
		return errors.New("passphrase required")
	}
	passphrase = string(b)
	return nil
}
