package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/logger"
)

// fakeFetcher serves canned token data; unknown addresses are not found.
type fakeFetcher struct {
	mu      sync.Mutex
	data    map[string]entity.TokenData
	failing map[string]error
	calls   map[string]int
	entered atomic.Int64
	total   atomic.Int64
	gate    chan struct{} // when set, every fetch waits on it
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		data:    make(map[string]entity.TokenData),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) set(address string, d entity.TokenData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[address] = d
	delete(f.failing, address)
}

func (f *fakeFetcher) fail(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[address] = err
}

func (f *fakeFetcher) callsFor(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func (f *fakeFetcher) FetchTokenData(ctx context.Context, address string) (*entity.TokenData, error) {
	f.entered.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.total.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[address]++
	if err, ok := f.failing[address]; ok {
		return nil, err
	}
	d, ok := f.data[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrTokenNotFound, address)
	}
	return &d, nil
}

// memStorage is an in-memory port.StateStorage.
type memStorage struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves map[string]int
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte), saves: make(map[string]int)}
}

func (m *memStorage) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return append([]byte(nil), d...), ok, nil
}

func (m *memStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	m.saves[key]++
	return nil
}

func (m *memStorage) saveCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[key]
}

// manualClock is a settable clock for scheduler and store tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{now: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func tokenData(address, symbol, price string, marketCap float64) entity.TokenData {
	return entity.TokenData{
		BaseToken: entity.BaseToken{Address: address, Name: symbol + " Token", Symbol: symbol},
		PriceUsd:  price,
		MarketCap: marketCap,
		Volume:    entity.Volume{H24: 1000},
		Txns:      entity.Txns{H24: entity.TxnCount{Buys: 10, Sells: 5}},
	}
}

func newTestStore(storage *memStorage) *PortfolioStore {
	var s *PortfolioStore
	if storage == nil {
		s = NewPortfolioStore(nil, logger.NewNop())
	} else {
		s = NewPortfolioStore(storage, logger.NewNop())
	}
	var n atomic.Int64
	s.groupID = func() string { return fmt.Sprintf("group_%d", n.Add(1)) }
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}
