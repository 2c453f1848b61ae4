package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
	"portfolio_tracker/internal/pkg/utils"

	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// PortfolioStore is the single source of truth for tracked tokens and groups.
//
// Mutations are serialized by one writer lock. Each mutation works on a copy
// of the current portfolio and publishes it as a new immutable version, so
// readers never observe a half-applied update. Every operation is total:
// unknown addresses or group ids turn it into a no-op.
type PortfolioStore struct {
	mu      sync.Mutex
	current atomic.Pointer[entity.Portfolio]
	version atomic.Uint64

	storage port.StateStorage
	logger  port.Logger
	now     func() time.Time
	groupID func() string

	subsMu      sync.RWMutex
	subscribers map[int]func(*entity.Portfolio)
	nextSubID   int
}

// NewPortfolioStore creates an empty store. storage may be nil for a purely
// in-memory store.
func NewPortfolioStore(storage port.StateStorage, l port.Logger) *PortfolioStore {
	s := &PortfolioStore{
		storage:     storage,
		logger:      l,
		now:         time.Now,
		groupID:     newGroupID,
		subscribers: make(map[int]func(*entity.Portfolio)),
	}
	s.current.Store(entity.NewPortfolio())
	return s
}

func newGroupID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "group_" + id.String()
}

// Restore loads the persisted portfolio, replacing the in-memory state.
// A missing record leaves the store empty.
func (s *PortfolioStore) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	data, found, err := s.storage.Load(ctx, PortfolioStateKey)
	if err != nil {
		return fmt.Errorf("load portfolio state: %w", err)
	}
	if !found {
		s.logger.Info("No persisted portfolio found, starting empty")
		return nil
	}

	restored := entity.NewPortfolio()
	if err := decodeState(data, restored); err != nil {
		return fmt.Errorf("decode portfolio state: %w", err)
	}
	if restored.Tokens == nil {
		restored.Tokens = make(map[string]entity.TokenEntry)
	}
	if restored.Groups == nil {
		restored.Groups = make(map[string]entity.TokenGroup)
	}
	for id, g := range restored.Groups {
		if g.Tokens == nil {
			g.Tokens = []string{}
		}
		if g.ID == "" {
			g.ID = id
		}
		restored.Groups[id] = g
	}

	s.mu.Lock()
	s.current.Store(restored)
	s.version.Add(1)
	s.mu.Unlock()

	metrics.TrackedTokens.Set(float64(len(restored.Tokens)))
	s.logger.Info("Portfolio restored", "tokens", len(restored.Tokens), "groups", len(restored.Groups))
	s.notify(restored)
	return nil
}

// Snapshot returns the current portfolio version. It must be treated as read-only.
func (s *PortfolioStore) Snapshot() *entity.Portfolio {
	return s.current.Load()
}

// Version is incremented on every published change.
func (s *PortfolioStore) Version() uint64 {
	return s.version.Load()
}

// Token returns the entry tracked under address.
func (s *PortfolioStore) Token(address string) (entity.TokenEntry, bool) {
	t, ok := s.Snapshot().Tokens[address]
	return t, ok
}

// Group returns the group with the given id.
func (s *PortfolioStore) Group(groupID string) (entity.TokenGroup, bool) {
	g, ok := s.Snapshot().Groups[groupID]
	return g, ok
}

// Addresses returns the tracked token addresses.
func (s *PortfolioStore) Addresses() []string {
	tokens := s.Snapshot().Tokens
	out := make([]string, 0, len(tokens))
	for addr := range tokens {
		out = append(out, addr)
	}
	return out
}

// Subscribe registers fn to be called with every newly published version.
// fn runs outside the writer lock and may call back into the store.
func (s *PortfolioStore) Subscribe(fn func(*entity.Portfolio)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subscribers, id)
		s.subsMu.Unlock()
	}
}

func (s *PortfolioStore) notify(p *entity.Portfolio) {
	s.subsMu.RLock()
	fns := make([]func(*entity.Portfolio), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(p)
	}
}

// mutate applies fn to a copy of the current portfolio and publishes the copy
// when fn reports a change.
func (s *PortfolioStore) mutate(op string, fn func(p *entity.Portfolio) bool) {
	s.mu.Lock()
	next := s.current.Load().Clone()
	if !fn(next) {
		s.mu.Unlock()
		return
	}
	s.current.Store(next)
	s.version.Add(1)
	s.persist(op, next)
	s.mu.Unlock()

	metrics.TrackedTokens.Set(float64(len(next.Tokens)))
	s.notify(next)
}

// persist runs under the writer lock so that saves land in mutation order.
func (s *PortfolioStore) persist(op string, p *entity.Portfolio) {
	if s.storage == nil {
		return
	}
	data, err := encodeState(p)
	if err != nil {
		s.logger.Error("Failed to encode portfolio", "op", op, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.storage.Save(ctx, PortfolioStateKey, data); err != nil {
		s.logger.Error("Failed to persist portfolio", "op", op, "error", err)
	}
}

func (s *PortfolioStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

// AddToken records a token with its entry price. Re-adding an existing
// address replaces the previous entry and resets its entry data.
func (s *PortfolioStore) AddToken(address string, data entity.TokenData, entryPrice float64) {
	s.mutate("addToken", func(p *entity.Portfolio) bool {
		p.Tokens[address] = entity.TokenEntry{
			TokenData: data,
			EntryData: entity.EntryData{
				Price:     entryPrice,
				MarketCap: data.MarketCap,
				Timestamp: s.nowMillis(),
			},
		}
		return true
	})
}

// RemoveToken deletes a token and strips it from every group.
func (s *PortfolioStore) RemoveToken(address string) {
	s.mutate("removeToken", func(p *entity.Portfolio) bool {
		_, changed := p.Tokens[address]
		delete(p.Tokens, address)
		for id, g := range p.Groups {
			filtered := utils.RemoveString(g.Tokens, address)
			if len(filtered) != len(g.Tokens) {
				g.Tokens = filtered
				p.Groups[id] = g
				changed = true
			}
		}
		return changed
	})
}

// UpdateEntryData replaces the cost basis of a tracked token with a fresh timestamp.
func (s *PortfolioStore) UpdateEntryData(address string, price, marketCap float64) {
	s.mutate("updateEntryData", func(p *entity.Portfolio) bool {
		t, ok := p.Tokens[address]
		if !ok {
			return false
		}
		t.EntryData = entity.EntryData{Price: price, MarketCap: marketCap, Timestamp: s.nowMillis()}
		p.Tokens[address] = t
		return true
	})
}

// UpdateTokenData shallow-merges patch into a tracked token's market fields.
// Entry data is never touched; the note only when the patch sets it.
func (s *PortfolioStore) UpdateTokenData(address string, patch entity.TokenDataPatch) {
	s.mutate("updateTokenData", func(p *entity.Portfolio) bool {
		t, ok := p.Tokens[address]
		if !ok {
			return false
		}
		patch.Apply(&t)
		p.Tokens[address] = t
		return true
	})
}

// ApplyTokenUpdates merges a refresh batch in a single mutation.
// Addresses that are no longer tracked are skipped.
func (s *PortfolioStore) ApplyTokenUpdates(updates map[string]entity.TokenData) {
	if len(updates) == 0 {
		return
	}
	s.mutate("applyTokenUpdates", func(p *entity.Portfolio) bool {
		changed := false
		for addr, data := range updates {
			t, ok := p.Tokens[addr]
			if !ok {
				continue
			}
			entity.PatchFromTokenData(data).Apply(&t)
			p.Tokens[addr] = t
			changed = true
		}
		return changed
	})
}

// CreateGroup adds a new empty group. A blank name is a no-op.
func (s *PortfolioStore) CreateGroup(name, description string) (entity.TokenGroup, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return entity.TokenGroup{}, false
	}
	group := entity.TokenGroup{
		ID:          s.groupID(),
		Name:        name,
		Description: description,
		Tokens:      []string{},
	}
	s.mutate("createGroup", func(p *entity.Portfolio) bool {
		p.Groups[group.ID] = group
		return true
	})
	return group, true
}

// RemoveGroup deletes a group. Member tokens are unaffected.
func (s *PortfolioStore) RemoveGroup(groupID string) {
	s.mutate("removeGroup", func(p *entity.Portfolio) bool {
		if _, ok := p.Groups[groupID]; !ok {
			return false
		}
		delete(p.Groups, groupID)
		return true
	})
}

// AddTokenToGroup appends address to a group's members; adding twice is a no-op.
// The address does not have to be tracked.
func (s *PortfolioStore) AddTokenToGroup(groupID, address string) {
	s.mutate("addTokenToGroup", func(p *entity.Portfolio) bool {
		g, ok := p.Groups[groupID]
		if !ok {
			return false
		}
		tokens, added := utils.AppendUnique(g.Tokens, address)
		if !added {
			return false
		}
		g.Tokens = tokens
		p.Groups[groupID] = g
		return true
	})
}

// RemoveTokenFromGroup drops address from a group's members.
func (s *PortfolioStore) RemoveTokenFromGroup(groupID, address string) {
	s.mutate("removeTokenFromGroup", func(p *entity.Portfolio) bool {
		g, ok := p.Groups[groupID]
		if !ok {
			return false
		}
		filtered := utils.RemoveString(g.Tokens, address)
		if len(filtered) == len(g.Tokens) {
			return false
		}
		g.Tokens = filtered
		p.Groups[groupID] = g
		return true
	})
}

// UpdateGroupName renames a group. A blank name is ignored.
func (s *PortfolioStore) UpdateGroupName(groupID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mutate("updateGroupName", func(p *entity.Portfolio) bool {
		g, ok := p.Groups[groupID]
		if !ok || g.Name == name {
			return false
		}
		g.Name = name
		p.Groups[groupID] = g
		return true
	})
}

// UpdateGroupDescription replaces a group's description.
func (s *PortfolioStore) UpdateGroupDescription(groupID, description string) {
	s.mutate("updateGroupDescription", func(p *entity.Portfolio) bool {
		g, ok := p.Groups[groupID]
		if !ok || g.Description == description {
			return false
		}
		g.Description = description
		p.Groups[groupID] = g
		return true
	})
}

// AddTokenNote sets the free-text note of a tracked token.
func (s *PortfolioStore) AddTokenNote(address, note string) {
	s.mutate("addTokenNote", func(p *entity.Portfolio) bool {
		t, ok := p.Tokens[address]
		if !ok {
			return false
		}
		t.Note = &note
		p.Tokens[address] = t
		return true
	})
}

// RemoveTokenNote clears the note of a tracked token.
func (s *PortfolioStore) RemoveTokenNote(address string) {
	s.mutate("removeTokenNote", func(p *entity.Portfolio) bool {
		t, ok := p.Tokens[address]
		if !ok || t.Note == nil {
			return false
		}
		t.Note = nil
		p.Tokens[address] = t
		return true
	})
}
