package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"unicode/utf8"

	"roomseal/internal/domain"
)

// NonceSize is the AES-GCM nonce length (96 bits).
const NonceSize = 12

// Encrypt seals plaintext under secret with AES-256-GCM and a fresh random
// nonce. Ciphertext (with tag) and nonce are returned as base64 text.
func Encrypt(plaintext string, secret []byte) (domain.Sealed, error) {
	if plaintext == "" {
		return domain.Sealed{}, domain.ErrEmptyMessage
	}
	aead, err := newGCM(secret)
	if err != nil {
		return domain.Sealed{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return domain.Sealed{}, fmt.Errorf("%w: nonce: %v", domain.ErrCryptoUnavailable, err)
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return domain.Sealed{
		Ciphertext: EncodeText(ct),
		Nonce:      EncodeText(nonce),
	}, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Empty input fails with
// domain.ErrEmptyMessage and non-base64 input with domain.ErrInvalidEncoding.
// Everything else that goes wrong is a *domain.DecryptionError; no partial
// plaintext is ever returned.
func Decrypt(ciphertext, nonce string, secret []byte) (string, error) {
	if ciphertext == "" || nonce == "" {
		return "", domain.ErrEmptyMessage
	}
	ct, err := DecodeText(ciphertext)
	if err != nil {
		return "", err
	}
	iv, err := DecodeText(nonce)
	if err != nil {
		return "", err
	}
	if len(iv) != NonceSize {
		return "", &domain.DecryptionError{
			Reason: domain.CorruptedData,
			Err:    fmt.Errorf("nonce is %d bytes, want %d", len(iv), NonceSize),
		}
	}
	if len(secret) != SecretSize {
		return "", &domain.DecryptionError{
			Reason: domain.WrongKey,
			Err:    fmt.Errorf("secret is %d bytes, want %d", len(secret), SecretSize),
		}
	}
	aead, err := newGCM(secret)
	if err != nil {
		return "", err
	}
	if len(ct) < aead.Overhead() {
		return "", &domain.DecryptionError{
			Reason: domain.CorruptedData,
			Err:    fmt.Errorf("ciphertext shorter than tag"),
		}
	}
	pt, err := aead.Open(nil, iv, ct, nil)
	if err != nil {
		return "", &domain.DecryptionError{Reason: domain.WrongKey, Err: err}
	}
	if len(pt) == 0 {
		return "", &domain.DecryptionError{Reason: domain.EmptyResult}
	}
	if !utf8.Valid(pt) {
		Wipe(pt)
		return "", &domain.DecryptionError{
			Reason: domain.CorruptedData,
			Err:    fmt.Errorf("plaintext is not valid UTF-8"),
		}
	}
	return string(pt), nil
}

func newGCM(secret []byte) (cipher.AEAD, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("secret is %d bytes, want %d", len(secret), SecretSize)
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: aes: %v", domain.ErrCryptoUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: gcm: %v", domain.ErrCryptoUnavailable, err)
	}
	return aead, nil
}
