// Package outbox drains durably staged auth events to the bus. Events are
// appended to the outbox in the same transaction as the state mutation that
// produced them (see the account repository), so a publish failure can
// never lose an event — it stays in the outbox and is retried. This is what
// makes the bus at-least-once rather than best-effort.
package outbox

import (
	"context"

	"authgate/internal/event/domain"
)

// Outbox is the drain-side view of the staged event rows.
type Outbox interface {
	// NextBatch returns up to limit unpublished events ordered by
	// (account, seq), so per-account order is preserved on publish.
	NextBatch(ctx context.Context, limit int) ([]*domain.AuthEvent, error)
	// MarkPublished records that the events with the given IDs were acked
	// by the bus.
	MarkPublished(ctx context.Context, ids []string) error
}
