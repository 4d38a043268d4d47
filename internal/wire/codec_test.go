package wire

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	eventdomain "authgate/internal/event/domain"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec_ShortSecret(t *testing.T) {
	if _, err := NewCodec([]byte("too short")); err == nil {
		t.Fatal("NewCodec accepted a short secret")
	}
}

func TestTokenRoundtrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC().Truncate(time.Second)
	in := &Token{
		SessionID: "11111111-1111-4111-8111-111111111111",
		AccountID: "22222222-2222-4222-8222-222222222222",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(15 * time.Minute).Unix(),
	}
	s, err := c.EncodeToken(in)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	out, err := c.DecodeToken(s)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if *out != *in {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", out, in)
	}
	if out.Expired(now) {
		t.Error("token reported expired before its expiry")
	}
	if !out.Expired(now.Add(16 * time.Minute)) {
		t.Error("token not reported expired after its expiry")
	}
}

func TestDecodeToken_Malformed(t *testing.T) {
	c := newTestCodec(t)
	s, err := c.EncodeToken(&Token{
		SessionID: "11111111-1111-4111-8111-111111111111",
		AccountID: "22222222-2222-4222-8222-222222222222",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	blob, _ := base64.RawURLEncoding.DecodeString(s)

	cases := map[string][]byte{
		"truncated":      blob[:len(blob)-1-32],
		"version bumped": append([]byte{SchemaVersion + 1}, blob[1:]...),
		"body tampered":  tamper(blob, 5),
		"tag tampered":   tamper(blob, len(blob)-1),
		"empty":          nil,
	}
	for name, b := range cases {
		enc := base64.RawURLEncoding.EncodeToString(b)
		if _, err := c.DecodeToken(enc); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("%s: DecodeToken = %v, want ErrTokenMalformed", name, err)
		}
	}
	if _, err := c.DecodeToken("not base64!!!"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("bad encoding: DecodeToken = %v, want ErrTokenMalformed", err)
	}
}

func TestDecodeToken_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	s, err := c.EncodeToken(&Token{
		SessionID: "11111111-1111-4111-8111-111111111111",
		AccountID: "22222222-2222-4222-8222-222222222222",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if _, err := other.DecodeToken(s); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("DecodeToken with wrong secret = %v, want ErrTokenMalformed", err)
	}
}

func TestEventRoundtrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now().UTC().Truncate(time.Second)
	ev := &eventdomain.AuthEvent{
		ID:         "33333333-3333-4333-8333-333333333333",
		Type:       eventdomain.TypeLogin,
		AccountID:  "22222222-2222-4222-8222-222222222222",
		SessionID:  "11111111-1111-4111-8111-111111111111",
		Seq:        7,
		OccurredAt: now,
	}
	blob, err := c.EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	p, err := c.DecodeEvent(blob)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if p.Type != string(eventdomain.TypeLogin) || p.Seq != 7 || p.AccountID != ev.AccountID {
		t.Errorf("decoded payload mismatch: %+v", p)
	}
	if p.OccurredAt != now.Unix() {
		t.Errorf("OccurredAt = %d, want %d", p.OccurredAt, now.Unix())
	}

	if _, err := c.DecodeEvent(tamper(blob, 3)); !errors.Is(err, ErrEventMalformed) {
		t.Errorf("DecodeEvent(tampered) = %v, want ErrEventMalformed", err)
	}
}

func tamper(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i] ^= 0xff
	return out
}
