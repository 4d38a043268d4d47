package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"authgate/internal/account/domain"
	eventdomain "authgate/internal/event/domain"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given
// db for persistence. The schema is in schema.sql.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, identifier, credential_hash, credential_algo, status, version, pending_revoke, created_at, updated_at`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByIdentifier returns the account for a login identifier, or nil if not found.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE identifier = $1`, identifier)
	return scanAccount(row)
}

// Create inserts the account at its current version together with any
// events, all in one transaction. Returns ErrIdentifierTaken on a unique
// violation.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account, events ...*eventdomain.AuthEvent) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, identifier, credential_hash, credential_algo, status, version, event_seq, pending_revoke, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)`,
			a.ID, a.Identifier, a.CredentialHash, a.CredentialAlgo, string(a.Status),
			a.Version, a.PendingRevoke, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return err
		}
		return appendEventsTx(ctx, tx, a.ID, events)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrIdentifierTaken
	}
	return err
}

// CompareAndSwap writes the account's mutable fields guarded by
// expectedVersion, appending events with fresh sequence numbers in the same
// transaction. Returns ErrConflict on a stale version and ErrNotFound when
// the row does not exist.
func (r *PostgresRepository) CompareAndSwap(ctx context.Context, a *domain.Account, expectedVersion int64, events ...*eventdomain.AuthEvent) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts
			 SET credential_hash = $1, credential_algo = $2, status = $3,
			     pending_revoke = $4, version = version + 1, updated_at = $5
			 WHERE id = $6 AND version = $7`,
			a.CredentialHash, a.CredentialAlgo, string(a.Status),
			a.PendingRevoke, time.Now().UTC(), a.ID, expectedVersion)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrConflict
			}
			return ErrNotFound
		}
		a.Version = expectedVersion + 1
		return appendEventsTx(ctx, tx, a.ID, events)
	})
}

// AppendEvents stages events for the account without mutating account
// state. Sequence numbers are allocated from the account row in the same
// transaction, so they stay gapless even across concurrent appends.
func (r *PostgresRepository) AppendEvents(ctx context.Context, accountID string, events ...*eventdomain.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return appendEventsTx(ctx, tx, accountID, events)
	})
}

// ClearPendingRevoke marks the account's lock cascade complete. It does not
// bump the version: the flag is reconciliation bookkeeping, not an
// authorization-relevant mutation, and clearing it twice is harmless.
func (r *PostgresRepository) ClearPendingRevoke(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET pending_revoke = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), accountID)
	return err
}

// ListPendingRevoke returns up to limit accounts with an unfinished lock
// cascade, oldest first.
func (r *PostgresRepository) ListPendingRevoke(ctx context.Context, limit int) ([]*domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE pending_revoke ORDER BY updated_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// appendEventsTx allocates the account's next sequence number per event and
// inserts the outbox row, inside the caller's transaction. The counter on
// the account row rolls back with the transaction, so committed sequences
// never have gaps.
func appendEventsTx(ctx context.Context, tx *sql.Tx, accountID string, events []*eventdomain.AuthEvent) error {
	for _, e := range events {
		var seq int64
		if err := tx.QueryRowContext(ctx,
			`UPDATE accounts SET event_seq = event_seq + 1 WHERE id = $1 RETURNING event_seq`,
			accountID).Scan(&seq); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		e.Seq = seq
		_, err := tx.ExecContext(ctx,
			`INSERT INTO auth_events_outbox (id, account_id, session_id, event_type, seq, occurred_at)
			 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6)`,
			e.ID, e.AccountID, e.SessionID, string(e.Type), seq, e.OccurredAt)
		if err != nil {
			return fmt.Errorf("append event %s: %w", e.Type, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var status string
	err := row.Scan(&a.ID, &a.Identifier, &a.CredentialHash, &a.CredentialAlgo,
		&status, &a.Version, &a.PendingRevoke, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Status = domain.Status(status)
	return &a, nil
}
