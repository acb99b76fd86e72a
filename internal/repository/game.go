package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

type GameRepository interface {
	Create(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	GetPlayer(ctx context.Context, gameID, playerID string) (*entity.Game, *entity.Player, error)
}

// memoryGame keeps games for the lifetime of the process.
type memoryGame struct {
	mu    sync.RWMutex
	games map[string]*entity.Game
}

func NewGameRepository() GameRepository {
	return &memoryGame{
		games: make(map[string]*entity.Game),
	}
}

func (that *memoryGame) Create(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[game.ID]; ok {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameAlreadyExists, game.ID)
	}

	that.games[game.ID] = game

	return nil
}

func (that *memoryGame) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	game, ok := that.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: game id %s", apperror.ErrGameNotFound, id)
	}

	return game, nil
}

func (that *memoryGame) GetPlayer(ctx context.Context, gameID, playerID string) (*entity.Game, *entity.Player, error) {
	game, err := that.GetByID(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}

	player, err := game.GetPlayerByID(playerID)
	if err != nil {
		return nil, nil, err
	}

	return game, player, nil
}
