package crypto

import (
	"encoding/base64"
	"fmt"

	"roomseal/internal/domain"
)

// EncodeText returns standard base64 encoding without newlines.
func EncodeText(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// DecodeText reverses EncodeText. Anything that is not valid standard base64
// fails with domain.ErrInvalidEncoding.
func DecodeText(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEncoding, err)
	}
	return b, nil
}
