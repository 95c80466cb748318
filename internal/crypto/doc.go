// Package crypto exposes the primitives used by roomseal.
//
// Contents
//
//   - Text transcoding of binary values (EncodeText, DecodeText)
//   - P-256 key-exchange keypair generation and parsing (GenerateKeyPair)
//   - ECDH shared secret derivation bound to a room (DeriveSharedSecret)
//   - AES-256-GCM message sealing with a fresh nonce per call (Encrypt,
//     Decrypt)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints and room safety codes (Fingerprint,
//     SafetyCode)
//
// # Notes
//
// Keys cross package boundaries as transport-safe text (base64 DER) so they
// can be stored and published unchanged. Failures are reported with the
// sentinel errors and the DecryptionError type defined in internal/domain.
package crypto
