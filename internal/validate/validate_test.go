package validate

import (
	"errors"
	"testing"
)

func TestIdentifier(t *testing.T) {
	valid := []string{
		"alice",
		"alice.smith",
		"a1b_c-d",
		"alice@example.com",
		"a.b+tag@sub.example.co",
	}
	for _, s := range valid {
		if err := Identifier(s); err != nil {
			t.Errorf("Identifier(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{
		"",
		"ab",    // too short for a username, not an email
		"Alice", // usernames are lowercase
		"-leading",
		"has space",
		"@example.com",
		"alice@",
		"alice@nodot",
	}
	for _, s := range invalid {
		if !errors.Is(Identifier(s), ErrInputInvalid) {
			t.Errorf("Identifier(%q) = nil, want ErrInputInvalid", s)
		}
	}
}

func TestSessionID(t *testing.T) {
	if err := SessionID("8f14e45f-ceea-4672-9d9a-1b2c3d4e5f60"); err != nil {
		t.Fatalf("SessionID(uuid) = %v, want nil", err)
	}
	for _, s := range []string{"", "not-a-uuid", "8F14E45F-CEEA-4672-9D9A-1B2C3D4E5F60"} {
		if !errors.Is(SessionID(s), ErrInputInvalid) {
			t.Errorf("SessionID(%q) = nil, want ErrInputInvalid", s)
		}
	}
}

func TestCredential(t *testing.T) {
	if err := Credential("Correct1HorseStaple"); err != nil {
		t.Fatalf("Credential(valid) = %v, want nil", err)
	}

	invalid := []string{
		"Short1aa",              // too short
		"alllowercase1234",      // no upper
		"ALLUPPERCASE1234",      // no lower
		"NoDigitsHereAtAll",     // no digit
		"Has Spaces Inside 12a", // space not allowed
	}
	for _, s := range invalid {
		if !errors.Is(Credential(s), ErrPolicyViolation) {
			t.Errorf("Credential(%q) = nil, want ErrPolicyViolation", s)
		}
	}
}
