package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"roomseal/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// FingerprintKey fingerprints a public key in text form.
func FingerprintKey(publicKey string) (domain.Fingerprint, error) {
	der, err := DecodeText(publicKey)
	if err != nil {
		return "", err
	}
	return domain.Fingerprint(Fingerprint(der)), nil
}

// SafetyCode condenses the public keys of every member of a room into a code
// that all members see identically when their rosters agree. Members compare
// it out of band to detect a relay substituting keys.
func SafetyCode(room domain.RoomID, members []domain.RoomMembership) string {
	entries := make([]string, 0, len(members))
	for _, m := range members {
		entries = append(entries, m.UserID.String()+"="+m.PublicKey)
	}
	sort.Strings(entries)

	h := blake3.New()
	_, _ = h.Write([]byte(room))
	for _, e := range entries {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(e))
	}
	digest := hex.EncodeToString(h.Sum(nil)[:10])

	groups := make([]string, 0, len(digest)/5)
	for i := 0; i < len(digest); i += 5 {
		groups = append(groups, digest[i:i+5])
	}
	return strings.Join(groups, " ")
}
