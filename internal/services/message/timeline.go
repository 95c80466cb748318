package message

import (
	"errors"
	"fmt"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

// Merge adds entry to the timeline unless a message with the same id is
// already there. It reports whether the timeline changed. Merging the same
// entry twice is a no-op.
func (s *Session) Merge(entry domain.TimelineEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(entry)
}

func (s *Session) mergeLocked(entry domain.TimelineEntry) bool {
	if _, dup := s.seen[entry.Message.ID]; dup {
		return false
	}
	s.seen[entry.Message.ID] = len(s.timeline)
	s.timeline = append(s.timeline, entry)
	return true
}

// decryptLocked opens the copy of msg addressed to the local user with the
// secret shared with its sender.
func (s *Session) decryptLocked(msg domain.Message) domain.TimelineEntry {
	plaintext, err := decryptFor(msg, s.self.UserID, s.secrets)
	if err != nil {
		s.logger.Debug("message not decrypted",
			"message_id", msg.ID.String(), "sender", msg.SenderUserID.String(), "error", err)
		return domain.TimelineEntry{Message: msg, Plaintext: domain.SentinelFor(err), Failure: err}
	}
	return domain.TimelineEntry{Message: msg, Plaintext: plaintext}
}

// redecryptLocked retries entries that failed for lack of a secret after the
// secret table changed, and returns the ones that now decrypt.
func (s *Session) redecryptLocked() []domain.TimelineEntry {
	var fixed []domain.TimelineEntry
	for i, e := range s.timeline {
		if e.Failure == nil || !errors.Is(e.Failure, domain.ErrUnknownSender) {
			continue
		}
		retry := s.decryptLocked(e.Message)
		if retry.Failure == nil {
			s.timeline[i] = retry
			fixed = append(fixed, retry)
		}
	}
	return fixed
}

func decryptFor(msg domain.Message, self domain.UserID, secrets domain.SecretTable) (string, error) {
	sealed, ok := msg.CiphertextFor(self)
	if !ok {
		return "", &domain.DecryptionError{Reason: domain.NotAddressed}
	}
	secret, ok := secrets[msg.SenderUserID]
	if !ok {
		return "", &domain.DecryptionError{
			Reason: domain.WrongKey,
			Err:    fmt.Errorf("sender %s: %w", msg.SenderUserID, domain.ErrUnknownSender),
		}
	}
	plaintext, err := crypto.Decrypt(sealed.Ciphertext, sealed.Nonce, secret)
	if err != nil {
		var de *domain.DecryptionError
		if errors.As(err, &de) {
			return "", err
		}
		return "", &domain.DecryptionError{Reason: domain.CorruptedData, Err: err}
	}
	return plaintext, nil
}
