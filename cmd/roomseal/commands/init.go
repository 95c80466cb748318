package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:         "init <display-name>",
		Short:       "Create the local profile, or rename it",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{noKeys: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			p, created, err := appCtx.InitProfile(name)
			if err != nil {
				return err
			}
			if save {
				cfg := appCtx.Config
				cfg.DisplayName = p.DisplayName
				if err := cfg.Save(); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
			}
			if created {
				fmt.Printf("Profile created.\nUser: %s (%s)\n", p.DisplayName, p.UserID)
			} else {
				fmt.Printf("Profile updated.\nUser: %s (%s)\n", p.DisplayName, p.UserID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save-config", false, "also write the relay URL and name to config.yaml")
	return cmd
}
