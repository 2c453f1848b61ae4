package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/metrics"
	"portfolio_tracker/internal/pkg/utils"
)

// PortfolioServiceImpl implements port.PortfolioService.
type PortfolioServiceImpl struct {
	store   *PortfolioStore
	fetcher port.TokenDataFetcher
	logger  port.Logger
}

// NewPortfolioService creates a new instance of PortfolioServiceImpl.
func NewPortfolioService(store *PortfolioStore, fetcher port.TokenDataFetcher, l port.Logger) port.PortfolioService {
	return &PortfolioServiceImpl{
		store:   store,
		fetcher: fetcher,
		logger:  l,
	}
}

func parseAddress(raw string) (string, error) {
	addr := utils.NormalizeTokenAddress(raw)
	if addr == "" {
		return "", fmt.Errorf("%w: token address is required", entity.ErrInvalidInput)
	}
	return addr, nil
}

// ParseEntryPrice validates a user supplied entry price. It must be a
// non-negative decimal that fits a float64.
func ParseEntryPrice(raw string) (float64, error) {
	d, err := utils.ParseDecimal(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: entry price: %v", entity.ErrInvalidInput, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: entry price must not be negative", entity.ErrInvalidInput)
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: entry price %s is out of range", entity.ErrInvalidInput, raw)
	}
	return f, nil
}

// AddToken validates input, fetches market data and records the token.
// Nothing is stored when the fetch yields no data.
func (s *PortfolioServiceImpl) AddToken(ctx context.Context, address, entryPrice string) (entity.TokenCard, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return entity.TokenCard{}, err
	}
	price, err := ParseEntryPrice(entryPrice)
	if err != nil {
		return entity.TokenCard{}, err
	}

	data, err := s.fetcher.FetchTokenData(ctx, addr)
	metrics.ObserveFetch(metrics.OriginAdd, err)
	if err != nil {
		return entity.TokenCard{}, err
	}

	s.store.AddToken(addr, *data, price)
	s.logger.Info("Token added", "address", addr, "symbol", data.BaseToken.Symbol, "entryPrice", price)
	return s.GetToken(addr)
}

// RemoveToken stops tracking a token and drops it from every group.
func (s *PortfolioServiceImpl) RemoveToken(address string) error {
	addr, err := s.trackedAddress(address)
	if err != nil {
		return err
	}
	s.store.RemoveToken(addr)
	s.logger.Info("Token removed", "address", addr)
	return nil
}

// RefreshToken re-fetches one token and merges its market fields. Entry data
// and the note are kept.
func (s *PortfolioServiceImpl) RefreshToken(ctx context.Context, address string) (entity.TokenCard, error) {
	addr, err := s.trackedAddress(address)
	if err != nil {
		return entity.TokenCard{}, err
	}

	data, err := s.fetcher.FetchTokenData(ctx, addr)
	metrics.ObserveFetch(metrics.OriginRefresh, err)
	if err != nil {
		return entity.TokenCard{}, err
	}

	s.store.UpdateTokenData(addr, entity.PatchFromTokenData(*data))
	return s.GetToken(addr)
}

// UpdateEntryPrice replaces the entry price, using the token's current market cap.
func (s *PortfolioServiceImpl) UpdateEntryPrice(address, price string) (entity.TokenCard, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return entity.TokenCard{}, err
	}
	p, err := ParseEntryPrice(price)
	if err != nil {
		return entity.TokenCard{}, err
	}
	entry, ok := s.store.Token(addr)
	if !ok {
		return entity.TokenCard{}, fmt.Errorf("%w: %s", entity.ErrTokenNotTracked, addr)
	}

	s.store.UpdateEntryData(addr, p, entry.MarketCap)
	return s.GetToken(addr)
}

// SetNote stores a note on a token. A blank note removes it.
func (s *PortfolioServiceImpl) SetNote(address, note string) error {
	addr, err := s.trackedAddress(address)
	if err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		s.store.RemoveTokenNote(addr)
		return nil
	}
	s.store.AddTokenNote(addr, note)
	return nil
}

// RemoveNote clears a token's note.
func (s *PortfolioServiceImpl) RemoveNote(address string) error {
	addr, err := s.trackedAddress(address)
	if err != nil {
		return err
	}
	s.store.RemoveTokenNote(addr)
	return nil
}

// GetToken returns the card of one tracked token.
func (s *PortfolioServiceImpl) GetToken(address string) (entity.TokenCard, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return entity.TokenCard{}, err
	}
	snapshot := s.store.Snapshot()
	entry, ok := snapshot.Tokens[addr]
	if !ok {
		return entity.TokenCard{}, fmt.Errorf("%w: %s", entity.ErrTokenNotTracked, addr)
	}
	return BuildTokenCard(addr, entry, snapshot.GroupsOf(addr)), nil
}

// ListTokens returns all tracked tokens, oldest entry first.
func (s *PortfolioServiceImpl) ListTokens() []entity.TokenCard {
	snapshot := s.store.Snapshot()
	cards := make([]entity.TokenCard, 0, len(snapshot.Tokens))
	for addr, entry := range snapshot.Tokens {
		cards = append(cards, BuildTokenCard(addr, entry, snapshot.GroupsOf(addr)))
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].EntryTimestamp != cards[j].EntryTimestamp {
			return cards[i].EntryTimestamp < cards[j].EntryTimestamp
		}
		return cards[i].Address < cards[j].Address
	})
	return cards
}

// CreateGroup creates an empty group. The name is required.
func (s *PortfolioServiceImpl) CreateGroup(name, description string) (entity.TokenGroup, error) {
	group, ok := s.store.CreateGroup(name, strings.TrimSpace(description))
	if !ok {
		return entity.TokenGroup{}, fmt.Errorf("%w: group name is required", entity.ErrInvalidInput)
	}
	s.logger.Info("Group created", "groupId", group.ID, "name", group.Name)
	return group, nil
}

// RemoveGroup deletes a group. Its tokens stay tracked.
func (s *PortfolioServiceImpl) RemoveGroup(groupID string) error {
	if _, ok := s.store.Group(groupID); !ok {
		return fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	s.store.RemoveGroup(groupID)
	return nil
}

// UpdateGroup renames and/or re-describes a group. Nil fields are left as is.
func (s *PortfolioServiceImpl) UpdateGroup(groupID string, name, description *string) (entity.TokenGroup, error) {
	if _, ok := s.store.Group(groupID); !ok {
		return entity.TokenGroup{}, fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	if name != nil && strings.TrimSpace(*name) == "" {
		return entity.TokenGroup{}, fmt.Errorf("%w: group name must not be empty", entity.ErrInvalidInput)
	}

	if name != nil {
		s.store.UpdateGroupName(groupID, *name)
	}
	if description != nil {
		s.store.UpdateGroupDescription(groupID, strings.TrimSpace(*description))
	}

	group, ok := s.store.Group(groupID)
	if !ok {
		return entity.TokenGroup{}, fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	return group, nil
}

// AddTokenToGroup assigns an address to a group. The address does not need
// to be tracked yet; untracked members are skipped when the group is read.
func (s *PortfolioServiceImpl) AddTokenToGroup(groupID, address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	snapshot := s.store.Snapshot()
	if len(snapshot.Groups) == 0 {
		return entity.ErrNoGroupsAvailable
	}
	if _, ok := snapshot.Groups[groupID]; !ok {
		return fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	s.store.AddTokenToGroup(groupID, addr)
	return nil
}

// RemoveTokenFromGroup unassigns an address from a group.
func (s *PortfolioServiceImpl) RemoveTokenFromGroup(groupID, address string) error {
	addr, err := parseAddress(address)
	if err != nil {
		return err
	}
	if _, ok := s.store.Group(groupID); !ok {
		return fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	s.store.RemoveTokenFromGroup(groupID, addr)
	return nil
}

// ListGroups returns every group with the cards of its tracked members, sorted by name.
func (s *PortfolioServiceImpl) ListGroups() []entity.GroupView {
	snapshot := s.store.Snapshot()
	views := make([]entity.GroupView, 0, len(snapshot.Groups))
	for _, g := range snapshot.Groups {
		views = append(views, buildGroupView(snapshot, g))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Name != views[j].Name {
			return views[i].Name < views[j].Name
		}
		return views[i].ID < views[j].ID
	})
	return views
}

// GetGroup returns one group with the cards of its tracked members.
func (s *PortfolioServiceImpl) GetGroup(groupID string) (entity.GroupView, error) {
	snapshot := s.store.Snapshot()
	g, ok := snapshot.Groups[groupID]
	if !ok {
		return entity.GroupView{}, fmt.Errorf("%w: %s", entity.ErrGroupNotFound, groupID)
	}
	return buildGroupView(snapshot, g), nil
}

func (s *PortfolioServiceImpl) trackedAddress(raw string) (string, error) {
	addr, err := parseAddress(raw)
	if err != nil {
		return "", err
	}
	if _, ok := s.store.Token(addr); !ok {
		return "", fmt.Errorf("%w: %s", entity.ErrTokenNotTracked, addr)
	}
	return addr, nil
}
