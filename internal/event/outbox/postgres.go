package outbox

import (
	"context"
	"database/sql"
	"time"

	"authgate/internal/event/domain"
)

type PostgresOutbox struct {
	db *sql.DB
}

// NewPostgresOutbox returns the drain-side reader over the same database
// the account repository appends to.
func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

// NextBatch returns up to limit unpublished events ordered by (account, seq).
func (o *PostgresOutbox) NextBatch(ctx context.Context, limit int) ([]*domain.AuthEvent, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, account_id, COALESCE(session_id::text, ''), event_type, seq, occurred_at
		 FROM auth_events_outbox
		 WHERE published_at IS NULL
		 ORDER BY account_id, seq
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuthEvent
	for rows.Next() {
		var e domain.AuthEvent
		var typ string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.SessionID, &typ, &e.Seq, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Type = domain.Type(typ)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkPublished stamps published_at on the given rows in one transaction.
func (o *PostgresOutbox) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE auth_events_outbox SET published_at = $1 WHERE id = $2 AND published_at IS NULL`,
			now, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
