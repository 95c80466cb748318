package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// history <code>: print the decrypted timeline of a room.
func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <code>",
		Short: "Print a room's decrypted messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			self, err := appCtx.Profile()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			r, err := rooms.Find(ctx, args[0])
			if err != nil {
				return err
			}
			s, err := appCtx.OpenSession(ctx, r)
			if err != nil {
				return err
			}
			defer s.Close()

			entries := s.Timeline()
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "No messages yet.")
			}
			for _, e := range entries {
				fmt.Println(formatEntry(e, self.UserID))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last N messages")
	return cmd
}
