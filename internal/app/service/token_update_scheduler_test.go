package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"portfolio_tracker/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schedulerEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type schedulerFixture struct {
	store     *PortfolioStore
	fetcher   *fakeFetcher
	storage   *memStorage
	clock     *manualClock
	scheduler *TokenUpdateScheduler
}

func newSchedulerFixture(t *testing.T, cfg SchedulerConfig) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		store:   newTestStore(nil),
		fetcher: newFakeFetcher(),
		storage: newMemStorage(),
		clock:   newManualClock(schedulerEpoch),
	}
	cfg.Now = f.clock.Now
	f.scheduler = NewTokenUpdateScheduler(f.fetcher, f.store, f.store, f.storage, logger.NewNop(), cfg)
	return f
}

// track adds address to the store and makes the fetcher serve a newer price for it.
func (f *schedulerFixture) track(address string) {
	f.store.AddToken(address, tokenData(address, address, "1", 100), 1)
	f.fetcher.set(address, tokenData(address, address, "2", 200))
}

func knownSet(addrs ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		out[a] = struct{}{}
	}
	return out
}

func TestScheduler_IsDueRoundTrip(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: 5 * time.Minute})
	f.track("ABC")
	f.scheduler.Enqueue("ABC")

	assert.True(t, f.scheduler.IsDue("ABC", schedulerEpoch), "never updated is always due")

	report := f.scheduler.RunCycle(context.Background(), knownSet("ABC"))
	require.Equal(t, []string{"ABC"}, report.Updated)

	assert.False(t, f.scheduler.IsDue("ABC", schedulerEpoch.Add(5*time.Minute-time.Millisecond)))
	assert.False(t, f.scheduler.IsDue("ABC", schedulerEpoch.Add(5*time.Minute)))
	assert.True(t, f.scheduler.IsDue("ABC", schedulerEpoch.Add(5*time.Minute+time.Millisecond)))
}

func TestScheduler_EnqueueIsIdempotent(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.scheduler.Enqueue("B")
	f.scheduler.Enqueue("A")
	f.scheduler.Enqueue("B")

	assert.Equal(t, []string{"B", "A"}, f.scheduler.Queue())
}

func TestScheduler_BatchCap(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{BatchSize: 10})
	var addrs []string
	for i := 0; i < 15; i++ {
		addr := fmt.Sprintf("T%02d", i)
		addrs = append(addrs, addr)
		f.track(addr)
		f.scheduler.Enqueue(addr)
	}

	report := f.scheduler.RunCycle(context.Background(), knownSet(addrs...))

	assert.Equal(t, addrs[:10], report.Attempted)
	assert.ElementsMatch(t, addrs[:10], report.Updated)
	assert.Equal(t, 5, report.Remaining)
	assert.Equal(t, addrs[10:], f.scheduler.Queue())
	for _, addr := range addrs[10:] {
		assert.True(t, f.scheduler.IsDue(addr, schedulerEpoch))
	}
	assert.Equal(t, int64(10), f.fetcher.total.Load())
}

func TestScheduler_SuccessMergesIntoStore(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("A")
	f.track("B")
	f.store.AddTokenNote("A", "keep")
	before := f.store.Version()
	entryBefore, _ := f.store.Token("A")

	f.scheduler.Enqueue("A")
	f.scheduler.Enqueue("B")
	f.scheduler.RunCycle(context.Background(), knownSet("A", "B"))

	assert.Equal(t, before+1, f.store.Version(), "one merge per cycle")
	a, _ := f.store.Token("A")
	assert.Equal(t, "2", a.PriceUsd)
	assert.Equal(t, entryBefore.EntryData, a.EntryData)
	require.NotNil(t, a.Note)
	assert.Equal(t, "keep", *a.Note)
	assert.Empty(t, f.scheduler.Queue())
}

func TestScheduler_FailureStaysQueued(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("OK")
	f.track("BAD")
	f.fetcher.fail("BAD", errors.New("connection reset"))
	f.scheduler.Enqueue("OK")
	f.scheduler.Enqueue("BAD")

	report := f.scheduler.RunCycle(context.Background(), knownSet("OK", "BAD"))

	assert.Equal(t, []string{"OK"}, report.Updated)
	assert.Equal(t, []string{"BAD"}, report.Failed)
	assert.Equal(t, []string{"BAD"}, f.scheduler.Queue())
	_, ok := f.scheduler.LastUpdated("BAD")
	assert.False(t, ok)
	bad, _ := f.store.Token("BAD")
	assert.Equal(t, "1", bad.PriceUsd)

	f.fetcher.set("BAD", tokenData("BAD", "BAD", "3", 300))
	report = f.scheduler.RunCycle(context.Background(), knownSet("OK", "BAD"))
	assert.Equal(t, []string{"BAD"}, report.Updated)
	assert.Empty(t, f.scheduler.Queue())
	assert.Equal(t, 2, f.fetcher.callsFor("BAD"))
}

func TestScheduler_NotDueAddressesWait(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Minute})
	f.track("A")
	f.scheduler.Enqueue("A")
	f.scheduler.RunCycle(context.Background(), knownSet("A"))

	f.clock.Set(schedulerEpoch.Add(30 * time.Second))
	f.scheduler.Enqueue("A")
	report := f.scheduler.RunCycle(context.Background(), knownSet("A"))

	assert.Empty(t, report.Attempted)
	assert.Equal(t, []string{"A"}, f.scheduler.Queue())
	assert.Equal(t, 1, f.fetcher.callsFor("A"))
}

func TestScheduler_UnknownAddressesAreDropped(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("A")
	f.fetcher.set("GONE", tokenData("GONE", "GONE", "1", 1))
	f.scheduler.Enqueue("GONE")
	f.scheduler.Enqueue("A")

	report := f.scheduler.RunCycle(context.Background(), knownSet("A"))

	assert.Equal(t, []string{"A"}, report.Attempted)
	assert.Zero(t, f.fetcher.callsFor("GONE"))
	assert.Empty(t, f.scheduler.Queue())
	_, ok := f.store.Token("GONE")
	assert.False(t, ok)
}

func TestScheduler_RemovedDuringFetchIsNotResurrected(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("A")
	f.fetcher.gate = make(chan struct{})
	f.scheduler.Enqueue("A")

	done := make(chan CycleReport)
	go func() { done <- f.scheduler.RunCycle(context.Background(), knownSet("A")) }()

	require.Eventually(t, func() bool { return f.fetcher.entered.Load() == 1 }, time.Second, time.Millisecond)
	f.store.RemoveToken("A")
	close(f.fetcher.gate)
	<-done

	assert.Empty(t, f.store.Snapshot().Tokens)
}

func TestScheduler_ForgetDuringFetchIsNotRecorded(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("A")
	f.track("B")
	f.fetcher.gate = make(chan struct{})
	f.scheduler.Enqueue("A")
	f.scheduler.Enqueue("B")

	done := make(chan CycleReport)
	go func() { done <- f.scheduler.RunCycle(context.Background(), knownSet("A", "B")) }()

	require.Eventually(t, func() bool { return f.fetcher.entered.Load() == 2 }, time.Second, time.Millisecond)
	f.store.RemoveToken("A")
	f.scheduler.Forget("A")
	close(f.fetcher.gate)
	report := <-done

	assert.Equal(t, []string{"B"}, report.Updated)
	_, ok := f.scheduler.LastUpdated("A")
	assert.False(t, ok)
	_, ok = f.scheduler.LastUpdated("B")
	assert.True(t, ok)

	raw, _, _ := f.storage.Load(context.Background(), BookkeepingStateKey)
	var bk bookkeeping
	require.NoError(t, decodeState(raw, &bk))
	assert.NotContains(t, bk.LastUpdated, "A")
	assert.Contains(t, bk.LastUpdated, "B")
}

func TestScheduler_BookkeepingPersistence(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Minute, Retention: time.Hour})
	f.track("A")
	f.scheduler.Enqueue("A")
	f.scheduler.RunCycle(context.Background(), knownSet("A"))

	raw, found, _ := f.storage.Load(context.Background(), BookkeepingStateKey)
	require.True(t, found)
	assert.JSONEq(t, fmt.Sprintf(`{"state":{"lastUpdated":{"A":%d}},"version":0}`, schedulerEpoch.UnixMilli()), string(raw))

	clock := newManualClock(schedulerEpoch.Add(30 * time.Second))
	restored := NewTokenUpdateScheduler(f.fetcher, f.store, f.store, f.storage, logger.NewNop(),
		SchedulerConfig{Interval: time.Minute, Retention: time.Hour, Now: clock.Now})
	require.NoError(t, restored.Restore(context.Background()))
	assert.False(t, restored.IsDue("A", clock.Now()))

	// bookkeeping older than the retention is dropped on restore
	late := newManualClock(schedulerEpoch.Add(2 * time.Hour))
	expired := NewTokenUpdateScheduler(f.fetcher, f.store, f.store, f.storage, logger.NewNop(),
		SchedulerConfig{Interval: time.Minute, Retention: time.Hour, Now: late.Now})
	require.NoError(t, expired.Restore(context.Background()))
	_, ok := expired.LastUpdated("A")
	assert.False(t, ok)
}

func TestScheduler_BookkeepingWithoutMatchingToken(t *testing.T) {
	storage := newMemStorage()
	payload := fmt.Sprintf(`{"state":{"lastUpdated":{"ORPHAN":%d}},"version":0}`, schedulerEpoch.UnixMilli())
	require.NoError(t, storage.Save(context.Background(), BookkeepingStateKey, []byte(payload)))

	store := newTestStore(nil)
	clock := newManualClock(schedulerEpoch)
	s := NewTokenUpdateScheduler(newFakeFetcher(), store, store, storage, logger.NewNop(), SchedulerConfig{Now: clock.Now})
	require.NoError(t, s.Restore(context.Background()))

	s.Enqueue("ORPHAN")
	report := s.RunCycle(context.Background(), knownSet())
	assert.Empty(t, report.Attempted)
	assert.Empty(t, store.Snapshot().Tokens)
}

func TestScheduler_Forget(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.track("A")
	f.scheduler.Enqueue("A")
	f.scheduler.RunCycle(context.Background(), knownSet("A"))
	f.scheduler.Enqueue("A")
	f.scheduler.Enqueue("B")

	f.scheduler.Forget("A")

	_, ok := f.scheduler.LastUpdated("A")
	assert.False(t, ok)
	assert.Equal(t, []string{"B"}, f.scheduler.Queue())
	raw, _, _ := f.storage.Load(context.Background(), BookkeepingStateKey)
	assert.JSONEq(t, `{"state":{"lastUpdated":{}},"version":0}`, string(raw))
}

func TestScheduler_StartRunsImmediatelyAndIsIdempotent(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Hour})
	f.track("A")

	f.scheduler.Start(context.Background())
	f.scheduler.Start(context.Background())
	require.True(t, f.scheduler.Running())

	require.Eventually(t, func() bool {
		a, _ := f.store.Token("A")
		return a.PriceUsd == "2"
	}, time.Second, 5*time.Millisecond)

	f.scheduler.Stop()
	f.scheduler.Stop()
	f.scheduler.Wait()

	assert.False(t, f.scheduler.Running())
	assert.Equal(t, 1, f.fetcher.callsFor("A"))
}

func TestScheduler_PeriodicCycles(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Millisecond, Period: 10 * time.Millisecond})
	f.track("A")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.scheduler.Start(ctx)

	require.Eventually(t, func() bool {
		f.clock.Set(f.clock.Now().Add(time.Second))
		return f.fetcher.callsFor("A") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	f.scheduler.Wait()
	assert.False(t, f.scheduler.Running(), "parent context end stops the loop")
}

func TestScheduler_StopLetsInFlightCycleFinish(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Hour})
	f.track("A")
	f.fetcher.gate = make(chan struct{})

	f.scheduler.Start(context.Background())
	require.Eventually(t, func() bool { return f.fetcher.entered.Load() == 1 }, time.Second, time.Millisecond)

	f.scheduler.Stop()
	assert.False(t, f.scheduler.Running())
	close(f.fetcher.gate)
	f.scheduler.Wait()

	a, _ := f.store.Token("A")
	assert.Equal(t, "2", a.PriceUsd)
	assert.Equal(t, int64(1), f.fetcher.total.Load())
}

func TestScheduler_RapidRestartKeepsOneTimer(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Hour})
	f.track("A")

	for i := 0; i < 20; i++ {
		f.scheduler.Start(context.Background())
		f.scheduler.Stop()
	}
	f.scheduler.Start(context.Background())
	require.Eventually(t, func() bool { return f.fetcher.callsFor("A") == 1 }, time.Second, time.Millisecond)
	f.scheduler.Stop()
	f.scheduler.Wait()

	assert.Equal(t, 1, f.fetcher.callsFor("A"), "a fresh token is fetched once however often the timer toggles")
}

func TestScheduler_WaitCoversReplacedLoops(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Interval: time.Hour})
	f.track("A")
	f.fetcher.gate = make(chan struct{})

	f.scheduler.Start(context.Background())
	require.Eventually(t, func() bool { return f.fetcher.entered.Load() == 1 }, time.Second, time.Millisecond)
	f.scheduler.Stop()
	f.scheduler.Start(context.Background())
	f.scheduler.Stop()

	waited := make(chan struct{})
	go func() {
		f.scheduler.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while the first cycle was still fetching")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.fetcher.gate)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the cycle finished")
	}

	a, _ := f.store.Token("A")
	assert.Equal(t, "2", a.PriceUsd)
}
