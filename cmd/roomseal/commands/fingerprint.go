package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomseal/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <code>",
		Short: "Print your key fingerprint and the room safety code",
		Long: "Print the fingerprint of your public key for a room and the room's safety code.\n" +
			"Members who see the same safety code see the same set of keys.",
		Args: cobra.ExactArgs(1),
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
			kp, err := appCtx.RoomKeys.GetOrCreate(r.Code)
			if err != nil {
				return err
			}
			fp, err := crypto.FingerprintKey(kp.PublicKey)
			if err != nil {
				return err
			}
			members, err := appCtx.Members.ListMembers(ctx, r.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\nSafety code: %s\n", fp, crypto.SafetyCode(r.ID, members))
			return nil
		},
	}
}
