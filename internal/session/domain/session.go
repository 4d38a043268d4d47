package domain

import "time"

// State is the lifecycle state of a session. Transitions are monotonic:
// ACTIVE may move to EXPIRED or REVOKED; neither terminal state ever moves
// back.
type State string

const (
	StateActive  State = "ACTIVE"
	StateExpired State = "EXPIRED"
	StateRevoked State = "REVOKED"
)

// Session is a live authenticated context owned by the document store. It
// references its account by ID only; the account is lifecycle-managed
// independently in the relational store.
type Session struct {
	ID           string     `bson:"_id"`
	AccountID    string     `bson:"account_id"`
	State        State      `bson:"state"`
	IssuedAt     time.Time  `bson:"issued_at"`
	ExpiresAt    time.Time  `bson:"expires_at"`
	RefreshCount int64      `bson:"refresh_count"`
	LastSeenAt   *time.Time `bson:"last_seen_at,omitempty"`
	RevokedAt    *time.Time `bson:"revoked_at,omitempty"`
}

// Usable reports whether the session can back a token at the given time:
// it must be ACTIVE and not past its expiry.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.State == StateActive && now.Before(s.ExpiresAt)
}
