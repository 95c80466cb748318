package invite_test

import (
	"strings"
	"testing"

	"roomseal/internal/invite"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	link := invite.Encode("https://chat.example", "AB12CD", "Team Chat")
	if !strings.HasPrefix(link, "https://chat.example/join?") {
		t.Fatalf("unexpected link %q", link)
	}

	inv, ok := invite.Decode(link)
	if !ok {
		t.Fatalf("Decode(%q) failed", link)
	}
	if inv.Code != "AB12CD" || inv.Name != "Team Chat" {
		t.Fatalf("got %+v", inv)
	}
}

func TestEncode_TrailingSlashOrigin(t *testing.T) {
	link := invite.Encode("https://chat.example/", "AB12CD", "a&b=c")
	inv, ok := invite.Decode(link)
	if !ok || inv.Name != "a&b=c" {
		t.Fatalf("got %+v from %q", inv, link)
	}
}

func TestDecode_Rejects(t *testing.T) {
	for _, raw := range []string{
		"not a url",
		"",
		"https://chat.example/other?code=AB12CD",
		"https://chat.example/join?name=x",
		"https://chat.example/join?code=",
		"/join?code=AB12CD",
	} {
		if inv, ok := invite.Decode(raw); ok {
			t.Fatalf("Decode(%q) = %+v, want failure", raw, inv)
		}
	}
}

func TestDecode_MissingName(t *testing.T) {
	inv, ok := invite.Decode("https://chat.example/join?code=AB12CD")
	if !ok || inv.Name != "" {
		t.Fatalf("got %+v, %v", inv, ok)
	}
}

func TestGenerateCode_Shape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := invite.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if _, err := invite.NormalizeCode(string(code)); err != nil {
			t.Fatalf("generated invalid code %q: %v", code, err)
		}
		seen[string(code)] = true
	}
	if len(seen) < 190 {
		t.Fatalf("only %d distinct codes out of 200", len(seen))
	}
}

func TestNormalizeCode(t *testing.T) {
	code, err := invite.NormalizeCode(" xj2k9p ")
	if err != nil || code != "XJ2K9P" {
		t.Fatalf("got %q, %v", code, err)
	}
	for _, bad := range []string{"ABC", "ABCDEFG", "AB-12C"} {
		if _, err := invite.NormalizeCode(bad); err == nil {
			t.Fatalf("NormalizeCode(%q) accepted", bad)
		}
	}
}

func TestResolve_LinkOrCode(t *testing.T) {
	inv, err := invite.Resolve(invite.Encode("https://x.example", "ab12cd", "Team"))
	if err != nil || inv.Code != "AB12CD" || inv.Name != "Team" {
		t.Fatalf("link: got %+v, %v", inv, err)
	}
	inv, err = invite.Resolve("ab12cd")
	if err != nil || inv.Code != "AB12CD" || inv.Name != "" {
		t.Fatalf("code: got %+v, %v", inv, err)
	}
}
