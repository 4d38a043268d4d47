package repository

import (
	"context"

	"authgate/internal/session/domain"
)

// Repository defines persistence for sessions in the document store. There
// are no cross-document transactions; the engine relies on single-writer-
// per-session semantics, so Update carries no version check.
type Repository interface {
	// Create persists a new session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Update replaces the stored session with s.
	Update(ctx context.Context, s *domain.Session) error
	// ListActiveByAccount returns all ACTIVE sessions for the account, for
	// the lock cascade and the reconciliation pass.
	ListActiveByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
}
