package service

import (
	"context"
	"testing"
	"time"

	"portfolio_tracker/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTrigger_FollowsTrackedTokens(t *testing.T) {
	store := newTestStore(nil)
	fetcher := newFakeFetcher()
	fetcher.set("A", tokenData("A", "A", "2", 200))
	scheduler := NewTokenUpdateScheduler(fetcher, store, store, nil, logger.NewNop(), SchedulerConfig{Interval: time.Hour})
	trigger := NewUpdateTrigger(store, scheduler, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- trigger.Run(ctx) }()

	assert.Never(t, scheduler.Running, 50*time.Millisecond, 5*time.Millisecond, "empty portfolio keeps the timer off")

	store.AddToken("A", tokenData("A", "A", "1", 100), 1)
	require.Eventually(t, scheduler.Running, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		a, _ := store.Token("A")
		return a.PriceUsd == "2"
	}, time.Second, time.Millisecond)
	_, ok := scheduler.LastUpdated("A")
	require.True(t, ok)

	store.RemoveToken("A")
	require.Eventually(t, func() bool { return !scheduler.Running() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := scheduler.LastUpdated("A")
		return !ok
	}, time.Second, time.Millisecond, "removed tokens are forgotten")

	store.AddToken("A", tokenData("A", "A", "1", 100), 1)
	require.Eventually(t, scheduler.Running, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	assert.False(t, scheduler.Running())
}

func TestUpdateTrigger_StartsForRestoredPortfolio(t *testing.T) {
	store := newTestStore(nil)
	store.AddToken("A", tokenData("A", "A", "1", 100), 1)
	scheduler := NewTokenUpdateScheduler(newFakeFetcher(), store, store, nil, logger.NewNop(), SchedulerConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewUpdateTrigger(store, scheduler, logger.NewNop()).Run(ctx) }()

	require.Eventually(t, scheduler.Running, time.Second, time.Millisecond)
}
