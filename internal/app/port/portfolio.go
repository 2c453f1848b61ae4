package port

import (
	"context"

	"portfolio_tracker/internal/domain/entity"
)

// PortfolioService is the use-case layer behind the REST API and the CLI.
// Input validation happens here; the store itself never fails.
type PortfolioService interface {
	AddToken(ctx context.Context, address, entryPrice string) (entity.TokenCard, error)
	RemoveToken(address string) error
	RefreshToken(ctx context.Context, address string) (entity.TokenCard, error)
	UpdateEntryPrice(address, price string) (entity.TokenCard, error)
	SetNote(address, note string) error
	RemoveNote(address string) error
	GetToken(address string) (entity.TokenCard, error)
	ListTokens() []entity.TokenCard

	CreateGroup(name, description string) (entity.TokenGroup, error)
	RemoveGroup(groupID string) error
	UpdateGroup(groupID string, name, description *string) (entity.TokenGroup, error)
	AddTokenToGroup(groupID, address string) error
	RemoveTokenFromGroup(groupID, address string) error
	ListGroups() []entity.GroupView
	GetGroup(groupID string) (entity.GroupView, error)
}
