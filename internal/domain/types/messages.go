package types

import "time"

// Sealed is one AEAD ciphertext with its nonce, both as base64 text.
type Sealed struct {
	Ciphertext string `json:"encrypted_content"`
	Nonce      string `json:"nonce"`
}

// RecipientCiphertext is the copy of a message sealed for one recipient.
type RecipientCiphertext struct {
	RecipientUserID UserID `json:"recipient_user_id"`
	Sealed
}

// Message is a persisted room message. Plaintext is never stored; each
// recipient has their own sealed copy.
type Message struct {
	ID           MessageID             `json:"id"`
	RoomID       RoomID                `json:"room_id"`
	SenderUserID UserID                `json:"sender_user_id"`
	SenderName   string                `json:"sender_name"`
	Ciphertexts  []RecipientCiphertext `json:"ciphertexts"`
	CreatedAt    time.Time             `json:"created_at"`
}

// CiphertextFor returns the copy addressed to recipient.
func (m Message) CiphertextFor(recipient UserID) (Sealed, bool) {
	for _, c := range m.Ciphertexts {
		if c.RecipientUserID == recipient {
			return c.Sealed, true
		}
	}
	return Sealed{}, false
}

// OutgoingMessage is what a client submits; the relay assigns ID and
// CreatedAt.
type OutgoingMessage struct {
	RoomID       RoomID                `json:"room_id"`
	SenderUserID UserID                `json:"sender_user_id"`
	SenderName   string                `json:"sender_name"`
	Ciphertexts  []RecipientCiphertext `json:"ciphertexts"`
}

// TimelineEntry is a message as seen by the local viewer.
type TimelineEntry struct {
	Message   Message
	Plaintext string
	// Failure is set when the message could not be decrypted; Plaintext then
	// holds the sentinel text.
	Failure error
}

// Decrypted reports whether the entry carries real plaintext.
func (e TimelineEntry) Decrypted() bool { return e.Failure == nil }
