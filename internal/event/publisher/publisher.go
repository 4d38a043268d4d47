package publisher

import (
	"context"

	"authgate/internal/event/domain"
)

// Publisher delivers auth events to the bus. Delivery is at-least-once;
// ordering is preserved only within a single account's stream. A returned
// error is treated as transient: the outbox keeps the event and the drainer
// retries it on a later pass.
type Publisher interface {
	Publish(ctx context.Context, e *domain.AuthEvent) error
	Close() error
}
