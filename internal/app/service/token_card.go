package service

import (
	"math"
	"sort"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"

	"github.com/shopspring/decimal"
)

// BuildTokenCard computes the presentation view of a tracked token.
// Performance is measured from the entry price to the current USD price.
func BuildTokenCard(address string, e entity.TokenEntry, groupIDs []string) entity.TokenCard {
	current, err := utils.ParseDecimal(e.PriceUsd)
	if err != nil {
		current = decimal.Zero
	}
	entry := decimal.Zero
	if !math.IsInf(e.EntryData.Price, 0) && !math.IsNaN(e.EntryData.Price) {
		entry = decimal.NewFromFloat(e.EntryData.Price)
	}
	percent, positive := utils.PercentChange(current, entry)

	card := entity.TokenCard{
		Address:        address,
		Name:           e.BaseToken.Name,
		Symbol:         e.BaseToken.Symbol,
		PriceUSD:       e.PriceUsd,
		PriceFormatted: utils.FormatUSD(current),
		EntryPrice:     e.EntryData.Price,
		EntryFormatted: utils.FormatUSD(entry),
		EntryMarketCap: e.EntryData.MarketCap,
		EntryTimestamp: e.EntryData.Timestamp,
		Performance:    entity.Performance{Percent: percent, IsPositive: positive},
		PriceChange24h: utils.FormatPercent(e.PriceChange.H24),
		MarketCap:      utils.FormatUSDFloat(e.MarketCap),
		Volume:         e.Volume,
		Txns:           e.Txns,
		Info:           e.Info,
	}
	if e.Note != nil {
		card.Note = *e.Note
	}
	if len(groupIDs) > 0 {
		card.GroupIDs = append([]string(nil), groupIDs...)
		sort.Strings(card.GroupIDs)
	}
	return card
}

// buildGroupView resolves a group's members against p, skipping addresses
// that are not tracked.
func buildGroupView(p *entity.Portfolio, g entity.TokenGroup) entity.GroupView {
	view := entity.GroupView{TokenGroup: g, Cards: make([]entity.TokenCard, 0, len(g.Tokens))}
	view.Tokens = append([]string{}, g.Tokens...)
	for _, addr := range g.Tokens {
		e, ok := p.Tokens[addr]
		if !ok {
			continue
		}
		view.Cards = append(view.Cards, BuildTokenCard(addr, e, p.GroupsOf(addr)))
	}
	return view
}
