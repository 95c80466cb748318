package types

import (
	"errors"
	"fmt"
)

var (
	// ErrCryptoUnavailable means the host has no conforming primitive
	// provider. Fatal for the session.
	ErrCryptoUnavailable = errors.New("cryptographic primitives unavailable")

	// ErrInvalidPeerKey is returned when a peer public key does not decode to
	// a point on the expected curve.
	ErrInvalidPeerKey = errors.New("invalid peer public key")

	// ErrEmptyMessage rejects empty plaintext or ciphertext before any transform.
	ErrEmptyMessage = errors.New("empty message")

	// ErrInvalidEncoding rejects text that is not valid transport encoding.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrUnreachable wraps network failures and timeouts. Callers may retry.
	ErrUnreachable = errors.New("relay unreachable")

	// ErrMembershipConflict is returned on a duplicate join.
	ErrMembershipConflict = errors.New("already a member of this room")

	// ErrRoomNotFound is returned when no room matches a code or id.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomCodeTaken is returned when a new room reuses an existing code.
	ErrRoomCodeTaken = errors.New("room code already in use")

	// ErrNoPeerSecret means no peer secret is derivable, so nothing can be sent.
	ErrNoPeerSecret = errors.New("no shared secret with any room member")

	// ErrUnknownSender means a message's sender has no entry in the secret
	// table, typically a member not yet (or no longer) in the loaded roster.
	ErrUnknownSender = errors.New("no shared secret with the sender")

	// ErrSessionClosed is returned by operations on a closed room session.
	ErrSessionClosed = errors.New("room session closed")

	// ErrWrongPassphrase is returned when a local key file cannot be opened.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")
)

// DecryptionReason classifies why a message could not be decrypted.
type DecryptionReason int

const (
	// WrongKey covers authentication failures and missing secrets.
	WrongKey DecryptionReason = iota + 1
	// CorruptedData covers malformed nonce or ciphertext sizes.
	CorruptedData
	// EmptyResult is a successful open that produced no plaintext.
	EmptyResult
	// NotAddressed means the message carries no copy for this viewer.
	NotAddressed
)

func (r DecryptionReason) String() string {
	switch r {
	case WrongKey:
		return "wrong key"
	case CorruptedData:
		return "corrupted data"
	case EmptyResult:
		return "empty result"
	case NotAddressed:
		return "not addressed to this device"
	default:
		return "unknown"
	}
}

// DecryptionError is the typed failure of a single message decrypt. It never
// carries partial plaintext.
type DecryptionError struct {
	Reason DecryptionReason
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Sentinel returns the text shown in place of the plaintext.
func (e *DecryptionError) Sentinel() string {
	switch e.Reason {
	case NotAddressed:
		return "[Not encrypted for this device]"
	case WrongKey:
		return "[Unable to decrypt]"
	default:
		return "[Decryption failed]"
	}
}

// SentinelFor returns the display text for any decrypt failure.
func SentinelFor(err error) string {
	var de *DecryptionError
	if errors.As(err, &de) {
		return de.Sentinel()
	}
	return "[Decryption failed]"
}
