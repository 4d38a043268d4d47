package engine

import (
	"context"
	"log"
	"time"
)

const reconcileBatchSize = 50

// Reconciler finishes lock cascades the session store failed to complete:
// it scans for LOCKED accounts still flagged pending-revoke and re-drives
// the idempotent cascade until no ACTIVE sessions remain.
type Reconciler struct {
	engine   *Engine
	interval time.Duration
}

// NewReconciler returns a Reconciler scanning at interval.
func NewReconciler(e *Engine, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{engine: e, interval: interval}
}

// Run scans until ctx is canceled. Failures are logged and retried on the
// next pass; the loop never gives up.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.ReconcileOnce(ctx); err != nil {
				log.Printf("reconciler: pass failed: %v", err)
			} else if n > 0 {
				log.Printf("reconciler: completed %d pending lock cascades", n)
			}
		}
	}
}

// ReconcileOnce processes one batch of pending accounts and returns how
// many cascades it completed. An account whose cascade fails again stays
// flagged for the next pass.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	accounts, err := r.engine.accounts.ListPendingRevoke(ctx, reconcileBatchSize)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, a := range accounts {
		if _, err := r.engine.cascadeRevoke(ctx, a.ID); err != nil {
			log.Printf("reconciler: cascade for account %s still failing: %v", a.ID, err)
			continue
		}
		if err := r.engine.accounts.ClearPendingRevoke(ctx, a.ID); err != nil {
			log.Printf("reconciler: clearing pending flag for account %s failed: %v", a.ID, err)
			continue
		}
		completed++
	}
	return completed, nil
}
