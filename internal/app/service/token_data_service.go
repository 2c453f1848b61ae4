package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/client"
	"portfolio_tracker/internal/domain/entity"
	dex_types "portfolio_tracker/internal/entity"
	"portfolio_tracker/internal/pkg/metrics"
)

// tokenDataServiceImpl implements port.TokenDataFetcher on top of DEX Screener.
type tokenDataServiceImpl struct {
	dexscreenerClient client.DEXScreenerClient
	logger            port.Logger
}

// NewTokenDataService creates a new instance of tokenDataServiceImpl.
func NewTokenDataService(dsc client.DEXScreenerClient, l port.Logger) port.TokenDataFetcher {
	return &tokenDataServiceImpl{
		dexscreenerClient: dsc,
		logger:            l,
	}
}

// FetchTokenData implements port.TokenDataFetcher.
// The first pair returned by the API is the token's market snapshot.
func (s *tokenDataServiceImpl) FetchTokenData(ctx context.Context, address string) (*entity.TokenData, error) {
	start := time.Now()
	pairs, err := s.dexscreenerClient.GetTokenPairs(ctx, address)
	metrics.TokenFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("Failed to fetch token data", "address", address, "error", err)
		return nil, fmt.Errorf("fetch token data for %s: %w", address, err)
	}
	if len(pairs) == 0 {
		s.logger.Warn("No pairs returned for token", "address", address)
		return nil, fmt.Errorf("%w: no pairs for %s", entity.ErrTokenNotFound, address)
	}

	data, ok := NormalizePair(pairs[0], address)
	if !ok {
		s.logger.Warn("First pair has no base token name or symbol", "address", address, "pairAddress", pairs[0].PairAddress)
		return nil, fmt.Errorf("%w: base token of %s is incomplete", entity.ErrTokenNotFound, address)
	}

	s.logger.Debug("Fetched token data", "address", address, "symbol", data.BaseToken.Symbol, "priceUsd", data.PriceUsd)
	return &data, nil
}

// NormalizePair converts a raw pair into the fixed TokenData shape, zeroing
// anything the API omitted. It reports false when the base token lacks a
// name or symbol.
func NormalizePair(pair dex_types.PairData, requestedAddress string) (entity.TokenData, bool) {
	if pair.BaseToken == nil || pair.BaseToken.Name == "" || pair.BaseToken.Symbol == "" {
		return entity.TokenData{}, false
	}

	data := entity.TokenData{
		BaseToken: entity.BaseToken{
			Address: pair.BaseToken.Address,
			Name:    pair.BaseToken.Name,
			Symbol:  pair.BaseToken.Symbol,
		},
		PriceUsd:  pair.PriceUsd,
		MarketCap: pair.MarketCap,
	}
	if data.BaseToken.Address == "" {
		data.BaseToken.Address = requestedAddress
	}
	if data.PriceUsd == "" {
		data.PriceUsd = "0"
	}
	if pair.PriceChange != nil {
		data.PriceChange.H24 = pair.PriceChange.H24
	}
	if pair.Volume != nil {
		data.Volume = entity.Volume{
			H24: pair.Volume.H24,
			H6:  pair.Volume.H6,
			H1:  pair.Volume.H1,
			M5:  pair.Volume.M5,
		}
	}
	if pair.Txns != nil {
		data.Txns = entity.Txns{
			H24: txnCount(pair.Txns.H24),
			H6:  txnCount(pair.Txns.H6),
			H1:  txnCount(pair.Txns.H1),
			M5:  txnCount(pair.Txns.M5),
		}
	}
	if pair.Info != nil {
		data.Info = entity.TokenInfo{
			ImageURL: pair.Info.ImageURL,
			Header:   pair.Info.Header,
			Socials:  flattenSocials(pair.Info),
		}
	}
	return data, true
}

func txnCount(s *dex_types.TxnSummary) entity.TxnCount {
	if s == nil {
		return entity.TxnCount{}
	}
	return entity.TxnCount{Buys: s.Buys, Sells: s.Sells}
}

// flattenSocials maps the typed link list onto the four known keys.
// The first website seeds "website"; a socials entry of the same type wins.
// Unknown types are ignored.
func flattenSocials(info *dex_types.PairInfo) entity.Socials {
	var socials entity.Socials
	if len(info.Websites) > 0 {
		socials.Website = info.Websites[0].URL
	}
	for _, link := range info.Socials {
		switch strings.ToLower(link.Type) {
		case "website":
			socials.Website = link.URL
		case "twitter":
			socials.Twitter = link.URL
		case "telegram":
			socials.Telegram = link.URL
		case "discord":
			socials.Discord = link.URL
		}
	}
	return socials
}
