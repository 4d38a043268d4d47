package domain

import "time"

// Type identifies the auth state transition an event describes.
type Type string

const (
	TypeLogin   Type = "LOGIN"
	TypeRefresh Type = "REFRESH"
	TypeLogout  Type = "LOGOUT"
	TypeRevoke  Type = "REVOKE"
	TypeLock    Type = "LOCK"
)

// AuthEvent is an immutable fact produced once per state transition and
// published at-least-once. Seq is strictly increasing and gapless per
// account; subscribers use it to detect gaps and deduplicate redeliveries.
type AuthEvent struct {
	ID         string
	Type       Type
	AccountID  string
	SessionID  string // empty for account-only events (LOCK)
	Seq        int64  // assigned by the outbox when the row is appended
	OccurredAt time.Time
}
