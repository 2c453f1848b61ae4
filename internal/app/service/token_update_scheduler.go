package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultUpdateInterval = 5 * time.Minute
	DefaultBatchSize      = 10
	DefaultRetention      = 7 * 24 * time.Hour
)

// SchedulerConfig tunes the refresh loop. Zero values fall back to defaults.
type SchedulerConfig struct {
	// Interval is how old a token's data must be before it is due again.
	Interval time.Duration
	// Period is the timer period between cycles. Defaults to Interval.
	Period time.Duration
	// BatchSize caps the number of fetches per cycle.
	BatchSize int
	// Retention bounds how long a lastUpdated record outlives its last refresh.
	Retention time.Duration
	// Now is the clock used for due checks and bookkeeping.
	Now func() time.Time
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultUpdateInterval
	}
	if c.Period <= 0 {
		c.Period = c.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Retention <= c.Interval {
		c.Retention = max(DefaultRetention, 2*c.Interval)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	Attempted []string
	Updated   []string
	Failed    []string
	Remaining int
}

// bookkeeping is the persisted part of the scheduler state.
type bookkeeping struct {
	LastUpdated map[string]int64 `json:"lastUpdated"`
}

// TokenUpdateScheduler keeps token market data fresh.
//
// Addresses wait in an ordered, duplicate-free queue. Each cycle takes the
// due ones (never refreshed, or refreshed longer than Interval ago), caps
// them at BatchSize and fetches them concurrently. Successful results leave
// the queue and are handed to the sink in one batch; failures stay queued
// and are retried next cycle.
type TokenUpdateScheduler struct {
	fetcher port.TokenDataFetcher
	sink    port.TokenUpdateSink
	source  port.TrackedTokenSource
	storage port.StateStorage
	logger  port.Logger
	cfg     SchedulerConfig

	queueMu     sync.Mutex
	queue       []string
	queued      map[string]struct{}
	lastUpdated *cache.Cache // address -> unix millis of the last successful refresh

	cycleMu sync.Mutex // one cycle at a time

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	loops  sync.WaitGroup
}

// NewTokenUpdateScheduler creates a stopped scheduler. storage may be nil.
func NewTokenUpdateScheduler(
	fetcher port.TokenDataFetcher,
	sink port.TokenUpdateSink,
	source port.TrackedTokenSource,
	storage port.StateStorage,
	l port.Logger,
	cfg SchedulerConfig,
) *TokenUpdateScheduler {
	cfg = cfg.withDefaults()
	return &TokenUpdateScheduler{
		fetcher:     fetcher,
		sink:        sink,
		source:      source,
		storage:     storage,
		logger:      l,
		cfg:         cfg,
		queued:      make(map[string]struct{}),
		lastUpdated: cache.New(cfg.Retention, cfg.Retention/4),
	}
}

// Restore loads persisted bookkeeping. Records older than the retention are dropped.
func (s *TokenUpdateScheduler) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	data, found, err := s.storage.Load(ctx, BookkeepingStateKey)
	if err != nil {
		return fmt.Errorf("load update bookkeeping: %w", err)
	}
	if !found {
		return nil
	}
	var bk bookkeeping
	if err := decodeState(data, &bk); err != nil {
		return fmt.Errorf("decode update bookkeeping: %w", err)
	}

	now := s.cfg.Now()
	restored := 0
	for addr, ms := range bk.LastUpdated {
		ttl := s.cfg.Retention - now.Sub(time.UnixMilli(ms))
		if ttl <= 0 {
			continue
		}
		s.lastUpdated.Set(addr, ms, ttl)
		restored++
	}
	s.logger.Info("Update bookkeeping restored", "entries", restored, "dropped", len(bk.LastUpdated)-restored)
	return nil
}

// Enqueue adds address to the refresh queue. Queued addresses keep their position.
func (s *TokenUpdateScheduler) Enqueue(address string) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.enqueueLocked(address)
}

func (s *TokenUpdateScheduler) enqueueLocked(address string) {
	if _, ok := s.queued[address]; ok {
		return
	}
	s.queued[address] = struct{}{}
	s.queue = append(s.queue, address)
}

// Queue returns a copy of the pending addresses in queue order.
func (s *TokenUpdateScheduler) Queue() []string {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return append([]string(nil), s.queue...)
}

// LastUpdated returns the time of the last successful refresh of address.
func (s *TokenUpdateScheduler) LastUpdated(address string) (time.Time, bool) {
	v, ok := s.lastUpdated.Get(address)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(v.(int64)), true
}

// IsDue reports whether address should be refreshed at now.
func (s *TokenUpdateScheduler) IsDue(address string, now time.Time) bool {
	last, ok := s.LastUpdated(address)
	if !ok {
		return true
	}
	return now.Sub(last) > s.cfg.Interval
}

// Forget drops all state kept for the given addresses.
func (s *TokenUpdateScheduler) Forget(addresses ...string) {
	if len(addresses) == 0 {
		return
	}
	s.queueMu.Lock()
	for _, addr := range addresses {
		delete(s.queued, addr)
		s.lastUpdated.Delete(addr)
	}
	s.queue = s.compactLocked()
	s.queueMu.Unlock()

	s.persist()
}

func (s *TokenUpdateScheduler) compactLocked() []string {
	kept := make([]string, 0, len(s.queued))
	for _, addr := range s.queue {
		if _, ok := s.queued[addr]; ok {
			kept = append(kept, addr)
		}
	}
	return kept
}

// RunCycle runs one refresh pass over the queue. Addresses missing from known
// are dropped from the queue without being fetched. The cycle never fails as
// a whole; per-address failures are logged and left queued.
func (s *TokenUpdateScheduler) RunCycle(ctx context.Context, known map[string]struct{}) CycleReport {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runCycleLocked(ctx, known)
}

func (s *TokenUpdateScheduler) runCycleLocked(ctx context.Context, known map[string]struct{}) CycleReport {
	now := s.cfg.Now()
	batch := s.selectBatch(known, now)
	metrics.RefreshCyclesTotal.Inc()

	report := CycleReport{Attempted: batch}
	if len(batch) == 0 {
		report.Remaining = s.queueLen()
		metrics.RefreshQueueLength.Set(float64(report.Remaining))
		return report
	}

	s.logger.Debug("Starting refresh cycle", "batch", len(batch))

	// Остановка таймера не прерывает уже начатые запросы.
	fetchCtx := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		updates = make(map[string]entity.TokenData, len(batch))
	)
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.BatchSize)
	for _, addr := range batch {
		g.Go(func() error {
			data, err := s.fetcher.FetchTokenData(fetchCtx, addr)
			metrics.ObserveFetch(metrics.OriginSchedule, err)
			if err != nil {
				s.logger.Warn("Token refresh failed, keeping it queued", "address", addr, "error", err)
				return nil
			}
			mu.Lock()
			updates[addr] = *data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	nowMillis := now.UnixMilli()
	s.queueMu.Lock()
	for _, addr := range batch {
		if _, queued := s.queued[addr]; !queued {
			// Forget пришёл во время запроса
			delete(updates, addr)
			continue
		}
		if _, ok := updates[addr]; ok {
			report.Updated = append(report.Updated, addr)
			s.lastUpdated.SetDefault(addr, nowMillis)
			delete(s.queued, addr)
		} else {
			report.Failed = append(report.Failed, addr)
		}
	}
	s.queue = s.compactLocked()
	report.Remaining = len(s.queue)
	s.queueMu.Unlock()

	if len(updates) > 0 {
		s.sink.ApplyTokenUpdates(updates)
		s.persist()
	}

	metrics.RefreshQueueLength.Set(float64(report.Remaining))
	s.logger.Info("Refresh cycle finished",
		"updated", len(report.Updated),
		"failed", len(report.Failed),
		"remaining", report.Remaining)
	return report
}

// selectBatch prunes unknown addresses and returns the first due ones, capped at BatchSize.
func (s *TokenUpdateScheduler) selectBatch(known map[string]struct{}, now time.Time) []string {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	for _, addr := range s.queue {
		if _, ok := known[addr]; !ok {
			delete(s.queued, addr)
		}
	}
	s.queue = s.compactLocked()

	batch := make([]string, 0, s.cfg.BatchSize)
	for _, addr := range s.queue {
		if len(batch) == s.cfg.BatchSize {
			break
		}
		if s.IsDue(addr, now) {
			batch = append(batch, addr)
		}
	}
	return batch
}

func (s *TokenUpdateScheduler) queueLen() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

func (s *TokenUpdateScheduler) persist() {
	if s.storage == nil {
		return
	}
	items := s.lastUpdated.Items()
	bk := bookkeeping{LastUpdated: make(map[string]int64, len(items))}
	for addr, item := range items {
		bk.LastUpdated[addr] = item.Object.(int64)
	}
	data, err := encodeState(bk)
	if err != nil {
		s.logger.Error("Failed to encode update bookkeeping", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.storage.Save(ctx, BookkeepingStateKey, data); err != nil {
		s.logger.Error("Failed to persist update bookkeeping", "error", err)
	}
}

// tick queues every tracked token and runs a cycle, unless the loop was stopped meanwhile.
func (s *TokenUpdateScheduler) tick(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	addresses := s.source.Addresses()
	sort.Strings(addresses)
	known := make(map[string]struct{}, len(addresses))

	s.queueMu.Lock()
	for _, addr := range addresses {
		known[addr] = struct{}{}
		s.enqueueLocked(addr)
	}
	s.queueMu.Unlock()

	s.runCycleLocked(ctx, known)
}

// Start runs a cycle immediately and then one every Period until Stop is
// called or ctx ends. Calling Start on a running scheduler is a no-op.
func (s *TokenUpdateScheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.loops.Add(1)

	s.logger.Info("Token update scheduler started", "period", s.cfg.Period, "batchSize", s.cfg.BatchSize)
	go s.loop(loopCtx, cancel, done)
}

func (s *TokenUpdateScheduler) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer s.loops.Done()
	defer close(done)
	defer func() {
		cancel()
		// родительский контекст мог завершиться без Stop
		s.runMu.Lock()
		if s.done == done {
			s.cancel = nil
		}
		s.runMu.Unlock()
	}()

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop cancels the timer. No new cycle starts afterwards; a cycle already
// fetching finishes and its results are still merged. Stop is idempotent.
func (s *TokenUpdateScheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.logger.Info("Token update scheduler stopped")
}

// Running reports whether the timer is active.
func (s *TokenUpdateScheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

// Wait blocks until every started loop has exited, including loops
// replaced by a Stop/Start toggle whose last cycle is still merging.
func (s *TokenUpdateScheduler) Wait() {
	s.loops.Wait()
}
