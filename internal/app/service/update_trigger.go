package service

import (
	"context"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// UpdateTrigger owns the scheduler's lifecycle: the timer runs exactly while
// the store tracks at least one token. Removed tokens are forgotten by the
// scheduler so that its bookkeeping does not outgrow the portfolio.
type UpdateTrigger struct {
	store     *PortfolioStore
	scheduler *TokenUpdateScheduler
	logger    port.Logger
}

// NewUpdateTrigger creates a new instance of UpdateTrigger.
func NewUpdateTrigger(store *PortfolioStore, scheduler *TokenUpdateScheduler, l port.Logger) *UpdateTrigger {
	return &UpdateTrigger{store: store, scheduler: scheduler, logger: l}
}

// Run blocks until ctx is done, then stops the scheduler.
func (t *UpdateTrigger) Run(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	unsubscribe := t.store.Subscribe(func(*entity.Portfolio) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	defer t.scheduler.Stop()

	tracked := make(map[string]struct{})
	tracked = t.sync(ctx, tracked)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Update trigger stopped")
			return nil
		case <-changed:
			tracked = t.sync(ctx, tracked)
		}
	}
}

// sync reconciles the scheduler with the latest snapshot and returns the new tracked set.
func (t *UpdateTrigger) sync(ctx context.Context, prev map[string]struct{}) map[string]struct{} {
	snapshot := t.store.Snapshot()

	current := make(map[string]struct{}, len(snapshot.Tokens))
	for addr := range snapshot.Tokens {
		current[addr] = struct{}{}
	}

	var removed []string
	for addr := range prev {
		if _, ok := current[addr]; !ok {
			removed = append(removed, addr)
		}
	}
	if len(removed) > 0 {
		t.scheduler.Forget(removed...)
	}

	if len(current) > 0 {
		t.scheduler.Start(ctx)
	} else {
		t.scheduler.Stop()
	}
	return current
}
