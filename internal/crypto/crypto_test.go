package crypto_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"roomseal/internal/crypto"
	"roomseal/internal/domain"
)

func mustKeyPair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func mustSecret(t *testing.T, priv, pub string, room string) []byte {
	t.Helper()
	s, err := crypto.DeriveSharedSecret(priv, pub, []byte(room))
	if err != nil {
		t.Fatalf("DeriveSharedSecret: %v", err)
	}
	return s
}

func TestEncodeText_RoundTrip(t *testing.T) {
	in := []byte{0, 1, 2, 250, 255}
	out, err := crypto.DecodeText(crypto.EncodeText(in))
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("round trip mismatch: %x != %x", out, in)
	}
	if _, err := crypto.DecodeText("not base64!"); !errors.Is(err, domain.ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestGenerateKeyPair_PublicMatchesPrivate(t *testing.T) {
	kp := mustKeyPair(t)
	if kp.IsZero() {
		t.Fatal("empty keypair")
	}
	pub, err := crypto.PublicKeyOf(kp.PrivateKey)
	if err != nil {
		t.Fatalf("PublicKeyOf: %v", err)
	}
	if pub != kp.PublicKey {
		t.Fatal("public key does not match private key")
	}
	if other := mustKeyPair(t); other.PrivateKey == kp.PrivateKey {
		t.Fatal("two generated keypairs are identical")
	}
}

func TestDeriveSharedSecret_Symmetric(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	ab := mustSecret(t, a.PrivateKey, b.PublicKey, "room-1")
	ba := mustSecret(t, b.PrivateKey, a.PublicKey, "room-1")
	if !bytes.Equal(ab, ba) {
		t.Fatal("secrets differ between the two sides")
	}
	if len(ab) != crypto.SecretSize {
		t.Fatalf("secret length %d, want %d", len(ab), crypto.SecretSize)
	}
	if again := mustSecret(t, a.PrivateKey, b.PublicKey, "room-1"); !bytes.Equal(ab, again) {
		t.Fatal("derivation is not deterministic")
	}
	if other := mustSecret(t, a.PrivateKey, b.PublicKey, "room-2"); bytes.Equal(ab, other) {
		t.Fatal("secret is not bound to the room")
	}
}

func TestDeriveSharedSecret_InvalidPeerKey(t *testing.T) {
	a := mustKeyPair(t)
	for name, pub := range map[string]string{
		"empty":      "",
		"not base64": "%%%",
		"garbage":    crypto.EncodeText([]byte("definitely not a point")),
		"off curve":  crypto.EncodeText(append([]byte{4}, bytes.Repeat([]byte{1}, 64)...)),
	} {
		if _, err := crypto.DeriveSharedSecret(a.PrivateKey, pub, nil); !errors.Is(err, domain.ErrInvalidPeerKey) {
			t.Fatalf("%s: expected ErrInvalidPeerKey, got %v", name, err)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	secret := mustSecret(t, a.PrivateKey, b.PublicKey, "r")

	for _, msg := range []string{"hi", "héllo wörld 👋", strings.Repeat("x", 4096)} {
		sealed, err := crypto.Encrypt(msg, secret)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := crypto.Decrypt(sealed.Ciphertext, sealed.Nonce, secret)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != msg {
			t.Fatalf("got %q, want %q", got, msg)
		}
	}
}

func TestEncrypt_FreshNonces(t *testing.T) {
	secret := bytes.Repeat([]byte{7}, crypto.SecretSize)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		sealed, err := crypto.Encrypt("same text", secret)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if seen[sealed.Nonce] {
			t.Fatalf("nonce reused after %d calls", i)
		}
		seen[sealed.Nonce] = true
		raw, _ := crypto.DecodeText(sealed.Nonce)
		if len(raw) != crypto.NonceSize {
			t.Fatalf("nonce is %d bytes", len(raw))
		}
	}
}

func TestDecrypt_WrongKeyRejected(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	c := mustKeyPair(t)
	good := mustSecret(t, a.PrivateKey, b.PublicKey, "r")
	bad := mustSecret(t, a.PrivateKey, c.PublicKey, "r")

	sealed, err := crypto.Encrypt("secret plans", good)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := crypto.Decrypt(sealed.Ciphertext, sealed.Nonce, bad)
	if got != "" {
		t.Fatalf("partial plaintext returned: %q", got)
	}
	var de *domain.DecryptionError
	if !errors.As(err, &de) || de.Reason != domain.WrongKey {
		t.Fatalf("expected WrongKey DecryptionError, got %v", err)
	}
	if de.Sentinel() != "[Unable to decrypt]" {
		t.Fatalf("unexpected sentinel %q", de.Sentinel())
	}
}

func TestDecrypt_InputErrors(t *testing.T) {
	secret := bytes.Repeat([]byte{1}, crypto.SecretSize)
	sealed, err := crypto.Encrypt("hello", secret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := crypto.Encrypt("", secret); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("empty plaintext: got %v", err)
	}
	if _, err := crypto.Decrypt("", sealed.Nonce, secret); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("empty ciphertext: got %v", err)
	}
	if _, err := crypto.Decrypt("@@@", sealed.Nonce, secret); !errors.Is(err, domain.ErrInvalidEncoding) {
		t.Fatalf("bad encoding: got %v", err)
	}

	var de *domain.DecryptionError
	shortNonce := crypto.EncodeText([]byte{1, 2, 3})
	if _, err := crypto.Decrypt(sealed.Ciphertext, shortNonce, secret); !errors.As(err, &de) || de.Reason != domain.CorruptedData {
		t.Fatalf("short nonce: got %v", err)
	}
	tiny := crypto.EncodeText([]byte{1})
	if _, err := crypto.Decrypt(tiny, sealed.Nonce, secret); !errors.As(err, &de) || de.Reason != domain.CorruptedData {
		t.Fatalf("short ciphertext: got %v", err)
	}

	raw, _ := crypto.DecodeText(sealed.Ciphertext)
	raw[0] ^= 0xff
	if _, err := crypto.Decrypt(crypto.EncodeText(raw), sealed.Nonce, secret); !errors.As(err, &de) || de.Reason != domain.WrongKey {
		t.Fatalf("tampered ciphertext: got %v", err)
	}
}

func TestTwoPartyExchange(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)
	const room = "7d0c6a0e-room"

	aliceSecret := mustSecret(t, alice.PrivateKey, bob.PublicKey, room)
	sealed, err := crypto.Encrypt("hi", aliceSecret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	bobSecret := mustSecret(t, bob.PrivateKey, alice.PublicKey, room)
	got, err := crypto.Decrypt(sealed.Ciphertext, sealed.Nonce, bobSecret)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hi" {
		t.Fatalf("bob read %q", got)
	}
}

func TestSafetyCode_OrderIndependent(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	m1 := []domain.RoomMembership{{UserID: "a", PublicKey: a.PublicKey}, {UserID: "b", PublicKey: b.PublicKey}}
	m2 := []domain.RoomMembership{m1[1], m1[0]}

	if crypto.SafetyCode("r", m1) != crypto.SafetyCode("r", m2) {
		t.Fatal("safety code depends on roster order")
	}
	swapped := []domain.RoomMembership{{UserID: "a", PublicKey: b.PublicKey}, {UserID: "b", PublicKey: a.PublicKey}}
	if crypto.SafetyCode("r", m1) == crypto.SafetyCode("r", swapped) {
		t.Fatal("safety code ignores key substitution")
	}

	fp, err := crypto.FingerprintKey(a.PublicKey)
	if err != nil {
		t.Fatalf("FingerprintKey: %v", err)
	}
	if len(fp) != 20 {
		t.Fatalf("fingerprint length %d", len(fp))
	}
}
