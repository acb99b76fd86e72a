package tictactoe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/platform"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
)

const (
	ActionAttack      = "attack"
	ActionSynchronize = "syncronize"
	ActionStartTurn   = "start_turn"
	ActionEndGame     = "end_game"
)

const reportTimeout = 30 * time.Second

type gameRepo interface {
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	GetPlayer(ctx context.Context, gameID, playerID string) (*entity.Game, *entity.Player, error)
}

// notifier delivers messages to the live connections of a game.
type notifier interface {
	Broadcast(ctx context.Context, gameID, action string, data any)
	Notify(ctx context.Context, gameID, playerID, action string, data any) bool
}

type reporter interface {
	AddResults(ctx context.Context, gameID string, results *platform.Results) error
	QuitPlayer(ctx context.Context, gameID, playerID string) error
}

type AttackPayload struct {
	Coordinate int    `json:"coordinate"`
	Symbol     string `json:"symbol"`
}

type StartTurnPayload struct {
	IsTurn bool `json:"is_turn"`
}

type EndGamePayload struct {
	WinStatus entity.WinStatus `json:"win_status"`
}

type PlayerView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol"`
	IsTurn    bool             `json:"is_turn"`
	WinStatus entity.WinStatus `json:"win_status"`
}

type SynchronizePayload struct {
	Player PlayerView `json:"player"`
	Map    []*string  `json:"map"`
}

// Engine runs turns of every game. Each game is guarded by its own lock; notifications
// and reporting happen after the lock is released.
type Engine struct {
	logger *slog.Logger

	games    gameRepo
	notifier notifier
	reporter reporter
	outbox   repository.ReportOutbox
}

func NewEngine(logger *slog.Logger, games gameRepo, notifier notifier, reporter reporter, outbox repository.ReportOutbox) *Engine {
	return &Engine{
		logger:   logger.With("component", "engine"),
		games:    games,
		notifier: notifier,
		reporter: reporter,
		outbox:   outbox,
	}
}

// Attack applies a move of playerID and advances the game.
func (that *Engine) Attack(ctx context.Context, gameID, playerID string, coordinate int) error {
	log := that.logger.With("method", "Attack", "gameID", gameID, "playerID", playerID)

	game, player, err := that.games.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	game.Lock()

	if err = checkTurn(game, player); err != nil {
		game.Unlock()
		return err
	}

	if err = game.AttackPoint(coordinate, player.Symbol); err != nil {
		game.Unlock()
		return fmt.Errorf("failed to attack: %w", err)
	}

	status := that.CheckWinner(game)

	var next *entity.Player
	if status == entity.WinStatusUnknown {
		next = that.NextPlayer(game)
	}

	game.Unlock()

	log.Info("player attacked", "coordinate", coordinate, "status", status)

	that.notifier.Broadcast(ctx, gameID, ActionAttack, AttackPayload{
		Coordinate: coordinate,
		Symbol:     player.Symbol,
	})

	if next == nil {
		if err = that.OnEndGame(ctx, game); err != nil {
			log.Error("game ended but results were not reported", "error", err)
		}

		return nil
	}

	that.notifier.Notify(ctx, gameID, next.ID, ActionStartTurn, StartTurnPayload{IsTurn: true})

	return nil
}

func checkTurn(game *entity.Game, player *entity.Player) error {
	if game.IsEnd {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameFinished, game.ID)
	}

	if !game.IsTurnOf(player.ID) {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// CheckWinner scans the board of a locked game and ends it on a win or a draw.
func (that *Engine) CheckWinner(game *entity.Game) entity.WinStatus {
	status := game.CheckBoard()
	if status != entity.WinStatusUnknown {
		game.End(status)
	}

	return status
}

// NextPlayer passes the turn of a locked game to the other player.
func (that *Engine) NextPlayer(game *entity.Game) *entity.Player {
	return game.SwitchTurn()
}

// FinishGame force-ends a game as a draw for both players, whatever the board holds.
func (that *Engine) FinishGame(ctx context.Context, gameID string) error {
	game, err := that.games.GetByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}

	game.Lock()
	ended := game.End(entity.WinStatusDraw)
	game.Unlock()

	if !ended {
		return fmt.Errorf("%w: game id %s", apperror.ErrGameFinished, gameID)
	}

	that.logger.Info("game finished by request", "gameID", gameID)

	return that.OnEndGame(ctx, game)
}

// OnEndGame tells every player its outcome and reports the results of an externally created game.
// It must run once per game, by the caller that ended it.
func (that *Engine) OnEndGame(ctx context.Context, game *entity.Game) error {
	game.Lock()
	outcomes := make([]entity.Player, 0, len(game.Players))
	for _, player := range game.Players {
		outcomes = append(outcomes, *player)
	}
	results := platform.NewResults(game)
	external := game.IsExternalCreated
	game.Unlock()

	for _, player := range outcomes {
		that.notifier.Notify(ctx, game.ID, player.ID, ActionEndGame, EndGamePayload{WinStatus: player.WinStatus})
	}

	if !external {
		return nil
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := that.reporter.AddResults(reportCtx, game.ID, results); err != nil {
		that.park(reportCtx, game.ID, "add", results, err)
		return fmt.Errorf("%w: %w", apperror.ErrExternalReporting, err)
	}

	return nil
}

// Synchronize hands the current state of the game, as seen by one player, to deliver. deliver runs while
// the game is locked, so no move can happen between the snapshot and whatever deliver does with it.
func (that *Engine) Synchronize(ctx context.Context, gameID, playerID string, deliver func(*SynchronizePayload) error) error {
	game, player, err := that.games.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("failed to get player: %w", err)
	}

	game.Lock()
	defer game.Unlock()

	return deliver(&SynchronizePayload{
		Player: PlayerView{
			ID:        player.ID,
			Name:      player.Name,
			Symbol:    player.Symbol,
			IsTurn:    game.IsTurnOf(player.ID),
			WinStatus: player.WinStatus,
		},
		Map: game.Map(),
	})
}

// PlayerLeft reports a player leaving an external game that is still running.
func (that *Engine) PlayerLeft(ctx context.Context, gameID, playerID string) {
	log := that.logger.With("method", "PlayerLeft", "gameID", gameID, "playerID", playerID)

	game, err := that.games.GetByID(ctx, gameID)
	if err != nil {
		log.Warn("failed to get game", "error", err)
		return
	}

	game.Lock()
	running := game.IsExternalCreated && !game.IsEnd
	game.Unlock()

	if !running {
		return
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err = that.reporter.QuitPlayer(reportCtx, gameID, playerID); err != nil {
		log.Error("failed to report quit", "error", err)
		that.park(reportCtx, gameID, "quit", map[string]string{"uid": playerID}, err)
	}
}

func (that *Engine) park(ctx context.Context, gameID, kind string, payload any, reason error) {
	log := that.logger.With("method", "park", "gameID", gameID, "kind", kind)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal report", "error", err)
		return
	}

	report := &repository.FailedReport{
		GameID:   gameID,
		Kind:     kind,
		Payload:  raw,
		Reason:   reason.Error(),
		FailedAt: time.Now().UTC(),
	}

	if err = that.outbox.Park(ctx, report); err != nil {
		log.Error("failed to park report", "error", err)
		return
	}

	log.Warn("report parked", "reason", reason)
}
