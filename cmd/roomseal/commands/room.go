package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room and print its invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			r, err := rooms.Create(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Room %q created.\nCode:   %s\nInvite: %s\n", r.Name, r.Code, rooms.InviteLink(appCtx.Config.Origin(), r))
			return nil
		},
	}
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code-or-invite-link>",
		Short: "Join a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			r, err := rooms.Join(ctx, args[0])
			if errors.Is(err, domain.ErrMembershipConflict) {
				fmt.Printf("Already a member of %q (%s).\n", r.Name, r.Code)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Joined %q (%s).\n", r.Name, r.Code)
			return nil
		},
	}
}

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "rooms",
		Short:       "List the rooms you belong to",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noKeys: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			list, err := rooms.List(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No rooms yet. Use create or join.")
				return nil
			}
			local, err := appCtx.LocalRoomCodes()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tROLE\tKEY")
			for _, r := range list {
				role := "member"
				if r.IsCreator {
					role = "creator"
				}
				key := "missing"
				if local[r.Code] {
					key = "local"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Code, r.Name, role, key)
			}
			return tw.Flush()
		},
	}
}

func membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <code>",
		Short: "Show the roster and which members you share a secret with",
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
			members, err := appCtx.Members.ListMembers(ctx, r.ID)
			if err != nil {
				return err
			}
			kp, err := appCtx.RoomKeys.GetOrCreate(r.Code)
			if err != nil {
				return err
			}
			secrets, failures := appCtx.Members.ComputeSecrets(r.ID, self.UserID, kp, members)
			defer func() {
				for _, s := range secrets {
					crypto.Wipe(s)
				}
			}()
			failed := make(map[domain.UserID]error, len(failures))
			for _, f := range failures {
				failed[f.UserID] = f.Err
			}

			fmt.Printf("%s (%s): %s\n", r.Name, r.Code, header(len(members), secrets.Peers(self.UserID), len(failures)))
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFINGERPRINT\tSTATUS")
			for _, m := range members {
				status := "ok"
				switch {
				case m.UserID == self.UserID:
					status = "you"
				case failed[m.UserID] != nil:
					status = "no secret: " + failed[m.UserID].Error()
				}
				fp, _ := crypto.FingerprintKey(m.PublicKey)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", displayName(m), fp, status)
			}
			return tw.Flush()
		},
	}
}

func inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "invite <code>",
		Short:       "Print the invite link of a room",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{noKeys: ""},
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
			fmt.Println(rooms.InviteLink(appCtx.Config.Origin(), r))
			return nil
		},
	}
}

func leaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "leave <code>",
		Short:       "Leave a room and delete its local keypair",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{noKeys: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			r, err := rooms.Leave(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Left %q (%s)\n", r.Name, r.Code)
			return nil
		},
	}
}

func rekeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rekey <code>",
		Short: "Replace your keypair for a room and publish the new key",
		Long: "Replace your keypair for a room and publish the new public key.\n" +
			"Messages sealed to the old key can no longer be read on this device.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			ctx, cancel := appCtx.WithTimeout(cmd.Context())
			defer cancel()

			r, kp, err := rooms.Rekey(ctx, args[0])
			if err != nil {
				return err
			}
			fp, err := crypto.FingerprintKey(kp.PublicKey)
			if err != nil {
				return err
			}
			fmt.Printf("New key for %q (%s): %s\n", r.Name, r.Code, fp)
			return nil
		},
	}
}

func header(members, peers, failed int) string {
	h := fmt.Sprintf("%d members, %d with a shared secret", members, peers)
	if failed > 0 {
		h += fmt.Sprintf(", %d with an unusable key", failed)
	}
	return h
}

func displayName(m domain.RoomMembership) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.UserID.String()
}
