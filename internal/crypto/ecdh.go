package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"roomseal/internal/domain"
)

// SecretSize is the length of a derived shared secret (AES-256 key).
const SecretSize = 32

const secretLabel = "roomseal/pairwise/v1:"

// DeriveSharedSecret runs P-256 ECDH between the local private key and the
// peer public key and expands the result with HKDF-SHA256 into a 256-bit key
// bound to info (the room id). The result is the same on both sides:
// DeriveSharedSecret(privA, pubB, i) == DeriveSharedSecret(privB, pubA, i).
func DeriveSharedSecret(privateKey, peerPublicKey string, info []byte) ([]byte, error) {
	peer, err := ParsePublicKey(peerPublicKey)
	if err != nil {
		return nil, err
	}
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	shared, err := priv.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
	}
	defer Wipe(shared)

	label := make([]byte, 0, len(secretLabel)+len(info))
	label = append(label, secretLabel...)
	label = append(label, info...)

	out := make([]byte, SecretSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, label), out); err != nil {
		return nil, fmt.Errorf("%w: hkdf: %v", domain.ErrCryptoUnavailable, err)
	}
	return out, nil
}
