package message

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

// Send seals plaintext for every member with a usable secret, the sender
// included, and inserts it once. The message is not added to the timeline
// here; it arrives through the feed like everyone else's. A failed send is
// not retried.
func (s *Session) Send(ctx context.Context, plaintext string) (domain.Message, error) {
	if strings.TrimSpace(plaintext) == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}

	s.mu.Lock()
	switch s.state {
	case domain.StateClosed:
		s.mu.Unlock()
		return domain.Message{}, domain.ErrSessionClosed
	case domain.StateIdle, domain.StateLoading:
		state := s.state
		s.mu.Unlock()
		return domain.Message{}, fmt.Errorf("send: room session is %s", state)
	}
	if s.secrets.Peers(s.self.UserID) == 0 {
		s.mu.Unlock()
		return domain.Message{}, domain.ErrNoPeerSecret
	}
	recipients := make([]domain.UserID, 0, len(s.secrets))
	secrets := make(map[domain.UserID][]byte, len(s.secrets))
	if _, ok := s.secrets[s.self.UserID]; ok {
		recipients = append(recipients, s.self.UserID)
	}
	for _, m := range s.roster {
		if secret, ok := s.secrets[m.UserID]; ok && m.UserID != s.self.UserID {
			recipients = append(recipients, m.UserID)
			secrets[m.UserID] = append([]byte(nil), secret...)
		}
	}
	if secret, ok := s.secrets[s.self.UserID]; ok {
		secrets[s.self.UserID] = append([]byte(nil), secret...)
	}
	s.mu.Unlock()
	defer wipeTable(secrets)

	out := domain.OutgoingMessage{
		RoomID:       s.room.ID,
		SenderUserID: s.self.UserID,
		SenderName:   s.self.DisplayName,
		Ciphertexts:  make([]domain.RecipientCiphertext, 0, len(recipients)),
	}
	for _, r := range recipients {
		sealed, err := crypto.Encrypt(plaintext, secrets[r])
		if err != nil {
			return domain.Message{}, fmt.Errorf("seal for %s: %w", r, err)
		}
		out.Ciphertexts = append(out.Ciphertexts, domain.RecipientCiphertext{RecipientUserID: r, Sealed: sealed})
	}

	msg, err := s.relay.InsertMessage(ctx, out)
	if err != nil {
		return domain.Message{}, fmt.Errorf("send: %w", err)
	}
	s.logger.Debug("message sent", "message_id", msg.ID.String(), "copies", len(out.Ciphertexts))
	return msg, nil
}

// Sender is what a Composer submits to.
type Sender interface {
	Send(ctx context.Context, plaintext string) (domain.Message, error)
}

// Composer holds the draft being typed. The draft is cleared only after the
// relay accepted the message, so a failed send can be retried as is.
type Composer struct {
	sender Sender

	mu    sync.Mutex
	draft string
}

// NewComposer returns a Composer that submits through sender.
func NewComposer(sender Sender) *Composer { return &Composer{sender: sender} }

// SetDraft replaces the draft text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the current draft.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the draft. On success the draft is cleared; on failure it is
// kept and the error returned.
func (c *Composer) Submit(ctx context.Context) (domain.Message, error) {
	draft := c.Draft()
	msg, err := c.sender.Send(ctx, draft)
	if err != nil {
		return domain.Message{}, err
	}
	c.mu.Lock()
	if c.draft == draft {
		c.draft = ""
	}
	c.mu.Unlock()
	return msg, nil
}

var _ Sender = (*Session)(nil)
