package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// send <code> <message>: encrypt and send one message to a room.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <code> <message>",
		Short: "Encrypt and send a message to a room",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
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

			msg, err := s.Send(ctx, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Printf("sent to %d members\n", len(msg.Ciphertexts))
			return nil
		},
	}
}
