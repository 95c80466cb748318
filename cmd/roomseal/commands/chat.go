package commands

import (
	"bufio"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"roomseal/internal/domain"
	"roomseal/internal/services/message"
)

// chat <code-or-link>: open a room, print messages as they arrive and send
// each line typed. Joins the room first when given an invite link.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <code-or-invite-link>",
		Short: "Open a room interactively",
		Long: "Open a room interactively. Each line typed is sent to the room.\n\n" +
			"  /retry     resend the last message that failed\n" +
			"  /members   show the roster\n" +
			"  /code      show the room safety code\n" +
			"  /invite    show the invite link\n" +
			"  /leave     leave the room and delete its local keypair\n" +
			"  /quit      exit",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := appCtx.Rooms()
			if err != nil {
				return err
			}
			self, err := appCtx.Profile()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			openCtx, cancel := appCtx.WithTimeout(ctx)
			defer cancel()
			r, err := rooms.Join(openCtx, args[0])
			if err != nil && !errors.Is(err, domain.ErrMembershipConflict) {
				return err
			}
			s, err := appCtx.OpenSession(openCtx, r)
			if err != nil {
				return err
			}
			defer s.Close()

			out := &printer{out: os.Stdout}
			v := &chatView{out: out, self: self.UserID, session: s, printed: make(map[domain.MessageID]bool)}
			unsubscribe := s.Subscribe(v.handle)
			defer unsubscribe()

			out.printf("%s (%s): %s\n", r.Name, r.Code, sessionHeader(s))
			for _, e := range s.Timeline() {
				v.show(e)
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(os.Stdin)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()

			composer := message.NewComposer(s)
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					switch strings.TrimSpace(line) {
					case "":
						continue
					case "/quit":
						return nil
					case "/leave":
						_ = s.Close()
						leaveCtx, cancel := appCtx.WithTimeout(ctx)
						_, err := rooms.Leave(leaveCtx, string(r.Code))
						cancel()
						if err != nil {
							return err
						}
						out.printf("* left %s\n", r.Name)
						return nil
					case "/members":
						failed := make(map[domain.UserID]bool)
						for _, f := range s.PeerFailures() {
							failed[f.UserID] = true
						}
						for _, m := range s.Roster() {
							if failed[m.UserID] {
								out.printf("  %s (unusable key)\n", displayName(m))
								continue
							}
							out.printf("  %s\n", displayName(m))
						}
						out.printf("* %s\n", sessionHeader(s))
						continue
					case "/code":
						out.printf("* safety code %s\n", s.SafetyCode())
						continue
					case "/invite":
						out.printf("* %s\n", rooms.InviteLink(appCtx.Config.Origin(), r))
						continue
					case "/retry":
						if composer.Draft() == "" {
							out.printf("! nothing to retry\n")
							continue
						}
					default:
						composer.SetDraft(line)
					}
					sendCtx, cancel := appCtx.WithTimeout(ctx)
					_, err := composer.Submit(sendCtx)
					cancel()
					if err != nil {
						out.printf("! not sent: %v (type /retry to resend)\n", err)
					}
				}
			}
		},
	}
}

// chatView renders session events. Entries are shown once, and again only
// when a failed entry later decrypts.
type chatView struct {
	out     *printer
	self    domain.UserID
	session *message.Session

	printed map[domain.MessageID]bool
}

func (v *chatView) handle(ev message.Event) {
	switch ev.Kind {
	case message.EventMessage:
		v.show(ev.Entry)
	case message.EventRoster:
		v.out.printf("* %s\n", sessionHeader(v.session))
	case message.EventFeedLost:
		v.out.printf("! connection lost, reconnecting\n")
	case message.EventState:
		if ev.State == domain.StateClosed {
			v.out.printf("* session closed\n")
		}
	}
}

func sessionHeader(s *message.Session) string {
	return header(len(s.Roster()), s.Peers(), len(s.PeerFailures()))
}

func (v *chatView) show(e domain.TimelineEntry) {
	v.out.mu.Lock()
	decrypted, seen := v.printed[e.Message.ID]
	if seen && (decrypted || !e.Decrypted()) {
		v.out.mu.Unlock()
		return
	}
	v.printed[e.Message.ID] = e.Decrypted()
	v.out.mu.Unlock()
	v.out.entry(e, v.self)
}
