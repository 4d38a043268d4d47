package repository

import (
	"context"
	"errors"

	"authgate/internal/account/domain"
	eventdomain "authgate/internal/event/domain"
)

var (
	// ErrConflict is returned by CompareAndSwap when the expected version is
	// stale. The caller re-reads and retries.
	ErrConflict = errors.New("account: version conflict")

	// ErrNotFound is returned by CompareAndSwap when the account row does
	// not exist. Plain reads return (nil, nil) for missing rows instead.
	ErrNotFound = errors.New("account: not found")

	// ErrIdentifierTaken is returned by Create when the identifier is
	// already registered.
	ErrIdentifierTaken = errors.New("account: identifier already registered")
)

// Repository is the durable account store: the authoritative record for
// authorization decisions. It also owns the auth-event outbox, so event
// rows and the account mutation that produced them commit in one
// transaction; each appended event gets the account's next gapless
// sequence number.
type Repository interface {
	// GetByID returns the account for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIdentifier returns the account for a login identifier, or nil.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	// Create inserts a new account at version 0 together with any events.
	Create(ctx context.Context, a *domain.Account, events ...*eventdomain.AuthEvent) error
	// CompareAndSwap writes a's mutable fields if the stored version equals
	// expectedVersion, bumping the version and appending events in the same
	// transaction. On success a.Version holds the new version.
	CompareAndSwap(ctx context.Context, a *domain.Account, expectedVersion int64, events ...*eventdomain.AuthEvent) error
	// AppendEvents durably stages events for an account without touching
	// the account's own state. Used for session-scoped transitions
	// (REFRESH, REVOKE, LOGOUT).
	AppendEvents(ctx context.Context, accountID string, events ...*eventdomain.AuthEvent) error
	// ClearPendingRevoke marks a locked account's cascade as complete.
	ClearPendingRevoke(ctx context.Context, accountID string) error
	// ListPendingRevoke returns accounts whose lock cascade has not
	// finished, for the reconciliation pass.
	ListPendingRevoke(ctx context.Context, limit int) ([]*domain.Account, error)
}
