package port

import (
	"context"

	"portfolio_tracker/internal/domain/entity"
)

// TokenDataFetcher retrieves and normalizes market data for a single token address.
// Any error means "no data": entity.ErrTokenNotFound for unknown or malformed
// tokens, a wrapped transport error otherwise.
type TokenDataFetcher interface {
	FetchTokenData(ctx context.Context, address string) (*entity.TokenData, error)
}

// TokenUpdateSink receives the market data produced by a refresh cycle.
// Implementations must ignore addresses that are no longer tracked.
type TokenUpdateSink interface {
	ApplyTokenUpdates(updates map[string]entity.TokenData)
}

// TrackedTokenSource lists the addresses currently held by the portfolio.
type TrackedTokenSource interface {
	Addresses() []string
}
