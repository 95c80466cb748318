package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"fmt"

	"roomseal/internal/domain"
)

// curve is the key-exchange curve for every room keypair.
var curve = ecdh.P256()

// GenerateKeyPair returns a fresh P-256 key-exchange keypair. The private key
// is serialized as PKCS#8 and the public key as PKIX, both base64 encoded.
func GenerateKeyPair() (domain.KeyPair, error) {
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: generate key: %v", domain.ErrCryptoUnavailable, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: marshal private key: %v", domain.ErrCryptoUnavailable, err)
	}
	defer Wipe(privDER)
	pubDER, err := x509.MarshalPKIXPublicKey(priv.PublicKey())
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: marshal public key: %v", domain.ErrCryptoUnavailable, err)
	}
	return domain.KeyPair{
		PrivateKey: EncodeText(privDER),
		PublicKey:  EncodeText(pubDER),
	}, nil
}

// ParsePrivateKey decodes a PKCS#8 private key produced by GenerateKeyPair.
func ParsePrivateKey(text string) (*ecdh.PrivateKey, error) {
	der, err := DecodeText(text)
	if err != nil {
		return nil, err
	}
	defer Wipe(der)
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	var priv *ecdh.PrivateKey
	switch k := parsed.(type) {
	case *ecdsa.PrivateKey:
		if priv, err = k.ECDH(); err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
	case *ecdh.PrivateKey:
		priv = k
	default:
		return nil, fmt.Errorf("parse private key: unsupported key type %T", parsed)
	}
	if priv.Curve() != curve {
		return nil, fmt.Errorf("parse private key: not a P-256 key")
	}
	return priv, nil
}

// ParsePublicKey decodes a peer public key and checks that it is a point on
// P-256. Both PKIX and raw uncompressed point encodings are accepted. Every
// failure is reported as domain.ErrInvalidPeerKey.
func ParsePublicKey(text string) (*ecdh.PublicKey, error) {
	der, err := DecodeText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
	}
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: empty key", domain.ErrInvalidPeerKey)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		// Fall back to an uncompressed SEC 1 point.
		pub, rawErr := curve.NewPublicKey(der)
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
		}
		return pub, nil
	}

	var pub *ecdh.PublicKey
	switch k := parsed.(type) {
	case *ecdsa.PublicKey:
		if pub, err = k.ECDH(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPeerKey, err)
		}
	case *ecdh.PublicKey:
		pub = k
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", domain.ErrInvalidPeerKey, parsed)
	}
	if pub.Curve() != curve {
		return nil, fmt.Errorf("%w: not a P-256 key", domain.ErrInvalidPeerKey)
	}
	return pub, nil
}

// PublicKeyOf returns the public half of a serialized private key, in the
// same text form GenerateKeyPair uses.
func PublicKeyOf(privateKey string) (string, error) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(priv.PublicKey())
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return EncodeText(der), nil
}
