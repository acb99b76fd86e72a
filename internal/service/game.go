package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/platform"
)

type ExternalPlayer struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type ExternalParams struct {
	SymbolPlayer1 string `json:"symbol_player_1"`
	SymbolPlayer2 string `json:"symbol_player_2"`
}

// ExternalCreateRequest is how the platform asks for a game bound to its own identities.
type ExternalCreateRequest struct {
	AssessmentID string           `json:"assessment_id"`
	Players      []ExternalPlayer `json:"players"`
	Params       ExternalParams   `json:"params"`
}

type gameRepo interface {
	Create(ctx context.Context, game *entity.Game) error
}

type GameService struct {
	logger *slog.Logger
	games  gameRepo

	// pickFirst returns the index of the player who moves first.
	pickFirst func() int
}

func NewGameService(logger *slog.Logger, games gameRepo) *GameService {
	return &GameService{
		logger: logger.With("component", "games"),
		games:  games,
		pickFirst: func() int {
			return rand.IntN(2) //nolint: gosec // fairness only
		},
	}
}

// CreateGame creates a local game with generated ids and the default symbols.
func (that *GameService) CreateGame(ctx context.Context) (*entity.Game, error) {
	gameID := uuid.NewString()

	game := entity.NewGame(gameID, [2]*entity.Player{
		entity.NewPlayer(uuid.NewString(), gameID, "", entity.SymbolX),
		entity.NewPlayer(uuid.NewString(), gameID, "", entity.SymbolO),
	}, that.pickFirst(), false)

	if err := that.games.Create(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	that.logger.Info("game created", "gameID", gameID)

	return game, nil
}

// CreateExternalGame creates a game with the ids, names and symbols chosen by the platform.
// Symbols follow roles: when the first listed player is player_2 the symbols are swapped.
func (that *GameService) CreateExternalGame(ctx context.Context, req *ExternalCreateRequest) (*entity.Game, error) {
	gameID, err := uuid.Parse(req.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: assessment_id is not a uuid", apperror.ErrInvalidGameRequest)
	}

	if len(req.Players) != 2 {
		return nil, fmt.Errorf("%w: exactly 2 players required, got %d", apperror.ErrInvalidGameRequest, len(req.Players))
	}

	symbols := [2]string{req.Params.SymbolPlayer1, req.Params.SymbolPlayer2}
	if symbols[0] == "" || symbols[1] == "" || symbols[0] == symbols[1] {
		return nil, fmt.Errorf("%w: two distinct symbols required", apperror.ErrInvalidGameRequest)
	}

	if utf8.RuneCountInString(symbols[0]) != 1 || utf8.RuneCountInString(symbols[1]) != 1 {
		return nil, fmt.Errorf("%w: symbols must be one character", apperror.ErrInvalidGameRequest)
	}

	if req.Players[0].Role == platform.RolePlayer2 {
		symbols[0], symbols[1] = symbols[1], symbols[0]
	}

	var players [2]*entity.Player
	for i, player := range req.Players {
		playerID, err := uuid.Parse(player.UID)
		if err != nil {
			return nil, fmt.Errorf("%w: player uid %q is not a uuid", apperror.ErrInvalidGameRequest, player.UID)
		}

		players[i] = entity.NewPlayer(playerID.String(), gameID.String(), player.Name, symbols[i])
	}

	if players[0].ID == players[1].ID {
		return nil, fmt.Errorf("%w: players must differ", apperror.ErrInvalidGameRequest)
	}

	game := entity.NewGame(gameID.String(), players, that.pickFirst(), true)

	if err = that.games.Create(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create external game: %w", err)
	}

	that.logger.Info("external game created", "gameID", game.ID)

	return game, nil
}
