// Package wire encodes tokens and auth events as compact, versioned binary
// blobs. A blob is one schema-version byte, a msgpack body, and a trailing
// HMAC-SHA256 integrity tag over the version and body. Decoding checks the
// version first and the tag second; on any mismatch it fails outright,
// never attempting a partial decode.
package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	eventdomain "authgate/internal/event/domain"
)

// SchemaVersion is the current blob layout version. Bump on any change to
// the body structs.
const SchemaVersion byte = 1

const tagSize = sha256.Size

var (
	// ErrTokenMalformed is returned for any token blob that cannot be
	// decoded: bad encoding, truncated, wrong schema version, or failed
	// integrity check. Callers get no finer detail.
	ErrTokenMalformed = errors.New("wire: token malformed")

	// ErrEventMalformed is the event-payload counterpart of ErrTokenMalformed.
	ErrEventMalformed = errors.New("wire: event malformed")
)

// Token is the decoded view of a token blob: a signed snapshot of a session
// valid until ExpiresAt. It carries its own expiry, always at or before the
// session's, so access tokens stay short-lived against a longer session.
type Token struct {
	SessionID string `msgpack:"sid"`
	AccountID string `msgpack:"aid"`
	IssuedAt  int64  `msgpack:"iat"` // unix seconds
	ExpiresAt int64  `msgpack:"exp"` // unix seconds
}

// Expired reports whether the token itself is past its expiry at now. The
// backing session's state is checked separately by the engine.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(time.Unix(t.ExpiresAt, 0))
}

// EventPayload is the published form of an AuthEvent.
type EventPayload struct {
	ID         string `msgpack:"id"`
	Type       string `msgpack:"type"`
	AccountID  string `msgpack:"aid"`
	SessionID  string `msgpack:"sid,omitempty"`
	Seq        int64  `msgpack:"seq"`
	OccurredAt int64  `msgpack:"ts"` // unix seconds
}

// Codec signs and verifies blobs with a shared HMAC secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec using secret for integrity tags. The secret must
// be at least 32 bytes.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("wire: secret must be at least 32 bytes")
	}
	return &Codec{secret: append([]byte(nil), secret...)}, nil
}

// EncodeToken encodes t as a signed blob, base64url-encoded so it can
// travel as an opaque string.
func (c *Codec) EncodeToken(t *Token) (string, error) {
	blob, err := c.seal(t)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// DecodeToken decodes and verifies an encoded token. Every failure mode
// maps to ErrTokenMalformed.
func (c *Codec) DecodeToken(s string) (*Token, error) {
	blob, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	var t Token
	if err := c.open(blob, &t); err != nil {
		return nil, ErrTokenMalformed
	}
	if t.SessionID == "" || t.AccountID == "" || t.ExpiresAt == 0 {
		return nil, ErrTokenMalformed
	}
	return &t, nil
}

// EncodeEvent encodes an AuthEvent for publication on the bus.
func (c *Codec) EncodeEvent(e *eventdomain.AuthEvent) ([]byte, error) {
	p := EventPayload{
		ID:         e.ID,
		Type:       string(e.Type),
		AccountID:  e.AccountID,
		SessionID:  e.SessionID,
		Seq:        e.Seq,
		OccurredAt: e.OccurredAt.Unix(),
	}
	return c.seal(&p)
}

// DecodeEvent decodes and verifies a published event payload. Every
// failure mode maps to ErrEventMalformed.
func (c *Codec) DecodeEvent(blob []byte) (*EventPayload, error) {
	var p EventPayload
	if err := c.open(blob, &p); err != nil {
		return nil, ErrEventMalformed
	}
	if p.ID == "" || p.AccountID == "" || p.Seq <= 0 {
		return nil, ErrEventMalformed
	}
	return &p, nil
}

func (c *Codec) seal(body any) ([]byte, error) {
	enc, err := msgpack.Marshal(body)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, 1+len(enc)+tagSize)
	blob = append(blob, SchemaVersion)
	blob = append(blob, enc...)
	return append(blob, c.tag(blob)...), nil
}

func (c *Codec) open(blob []byte, body any) error {
	if len(blob) < 1+tagSize {
		return errors.New("wire: blob truncated")
	}
	if blob[0] != SchemaVersion {
		return errors.New("wire: schema version mismatch")
	}
	signed, tag := blob[:len(blob)-tagSize], blob[len(blob)-tagSize:]
	if !hmac.Equal(tag, c.tag(signed)) {
		return errors.New("wire: integrity check failed")
	}
	return msgpack.Unmarshal(signed[1:], body)
}

func (c *Codec) tag(signed []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(signed)
	return mac.Sum(nil)
}
