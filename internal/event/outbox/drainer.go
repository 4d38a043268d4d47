package outbox

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"authgate/internal/event/domain"
	"authgate/internal/event/publisher"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
	publishMaxRetries   = 3
)

// Drainer moves staged events from the outbox to the bus. Publish failures
// are transient by contract: the drainer skips the rest of that account's
// stream for the pass (order must hold within an account) and picks it up
// again on the next pass.
type Drainer struct {
	outbox   Outbox
	pub      publisher.Publisher
	interval time.Duration
	batch    int
}

// NewDrainer returns a Drainer polling at interval. A non-positive interval
// or batch size falls back to the defaults.
func NewDrainer(ob Outbox, pub publisher.Publisher, interval time.Duration, batch int) *Drainer {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Drainer{outbox: ob, pub: pub, interval: interval, batch: batch}
}

// Run polls the outbox until ctx is canceled. Errors are logged; the loop
// never gives up.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil {
				log.Printf("outbox: drain pass failed: %v", err)
			}
		}
	}
}

// DrainOnce publishes one batch and returns how many events were delivered
// and acked. Partial progress is committed: events published before a
// failure are marked even when the pass returns an error.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.outbox.NextBatch(ctx, d.batch)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var published []string
	stalled := make(map[string]bool) // accounts whose stream hit a publish failure
	var lastErr error
	for _, e := range events {
		if stalled[e.AccountID] {
			continue
		}
		if err := d.publishWithRetry(ctx, e); err != nil {
			// Leave this and every later event of the account for the
			// next pass so per-account ordering survives the failure.
			stalled[e.AccountID] = true
			lastErr = err
			log.Printf("outbox: publish %s seq=%d for account %s failed, will retry: %v",
				e.Type, e.Seq, e.AccountID, err)
			continue
		}
		published = append(published, e.ID)
	}

	if err := d.outbox.MarkPublished(ctx, published); err != nil {
		// Rows stay unpublished and will be republished; subscribers
		// dedupe on (account, seq).
		return len(published), err
	}
	return len(published), lastErr
}

func (d *Drainer) publishWithRetry(ctx context.Context, e *domain.AuthEvent) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), publishMaxRetries), ctx)
	return backoff.Retry(func() error {
		return d.pub.Publish(ctx, e)
	}, bo)
}
