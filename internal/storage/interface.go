package storage

import (
	"context"

	"github.com/mcoot/gamerelay/internal/model"
)

// GameStore defines persistence for the hub's game registry
type GameStore interface {
	SaveGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	DeleteGame(ctx context.Context, id model.GameID) error
	ListGames(ctx context.Context) ([]*model.Game, error)
}
