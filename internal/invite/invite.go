package invite

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"roomseal/internal/domain"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 6
	// CodeAlphabet lists the characters a room code is drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	joinPath = "/join"
)

// Encode returns the invite link for a room.
func Encode(origin string, code domain.RoomCode, name string) string {
	q := url.Values{}
	q.Set("code", string(code))
	q.Set("name", name)
	return strings.TrimRight(origin, "/") + joinPath + "?" + q.Encode()
}

// Decode parses an invite link. It never fails loudly: anything that is not
// an absolute URL with path /join and a non-empty code yields false. A
// missing name decodes to the empty string.
func Decode(raw string) (domain.Invite, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.Invite{}, false
	}
	if u.Path != joinPath {
		return domain.Invite{}, false
	}
	q := u.Query()
	code := q.Get("code")
	if code == "" {
		return domain.Invite{}, false
	}
	return domain.Invite{Code: domain.RoomCode(code), Name: q.Get("name")}, true
}

// GenerateCode returns a uniformly random room code.
func GenerateCode() (domain.RoomCode, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%w: room code: %v", domain.ErrCryptoUnavailable, err)
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return domain.RoomCode(b.String()), nil
}

// NormalizeCode upper-cases a user-typed code and checks its shape.
func NormalizeCode(s string) (domain.RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != CodeLength {
		return "", fmt.Errorf("room code must be %d characters, got %q", CodeLength, s)
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return "", fmt.Errorf("room code %q contains %q; only A-Z and 0-9 are allowed", s, r)
		}
	}
	return domain.RoomCode(code), nil
}

// Resolve accepts either an invite link or a bare room code and returns the
// normalized code plus the room name when the link carried one.
func Resolve(input string) (domain.Invite, error) {
	if inv, ok := Decode(input); ok {
		code, err := NormalizeCode(string(inv.Code))
		if err != nil {
			return domain.Invite{}, err
		}
		inv.Code = code
		return inv, nil
	}
	code, err := NormalizeCode(input)
	if err != nil {
		return domain.Invite{}, err
	}
	return domain.Invite{Code: code}, nil
}
