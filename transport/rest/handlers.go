package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/platform"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/service"
)

type gameService interface {
	CreateGame(ctx context.Context) (*entity.Game, error)
	CreateExternalGame(ctx context.Context, req *service.ExternalCreateRequest) (*entity.Game, error)
}

type gameFinisher interface {
	FinishGame(ctx context.Context, gameID string) error
}

type reportOutbox interface {
	List(ctx context.Context) ([]*repository.FailedReport, error)
	Pop(ctx context.Context) (*repository.FailedReport, error)
}

type PlayerResponse struct {
	PlayerID string `json:"player_id"`
	Symbol   string `json:"symbol"`
}

type GameResponse struct {
	GameID  string           `json:"game_id"`
	Players []PlayerResponse `json:"players"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type Handlers struct {
	logger   *slog.Logger
	games    gameService
	finisher gameFinisher
	outbox   reportOutbox
	apiKey   string
	meta     *platform.Meta

	// finished is called after a requested finish completes.
	finished func(gameID string, err error)
}

func NewHandlers(
	logger *slog.Logger,
	games gameService,
	finisher gameFinisher,
	outbox reportOutbox,
	apiKey string,
) *Handlers {
	handlers := &Handlers{
		logger:   logger.With("component", "rest"),
		games:    games,
		finisher: finisher,
		outbox:   outbox,
		apiKey:   apiKey,
		meta:     platform.NewMeta(),
	}
	handlers.finished = handlers.logFinished

	return handlers
}

// Routes mounts the HTTP API. external/* routes are reserved for the platform.
func (that *Handlers) Routes(router chi.Router) {
	router.Get("/ping", that.Ping)
	router.Post("/create", that.CreateGame)

	router.Route("/external", func(router chi.Router) {
		router.Use(that.platformOnly)

		router.Get("/meta", that.Meta)
		router.Post("/create", that.CreateExternalGame)
		router.Post("/finish/{game_id}", that.FinishGame)

		router.Get("/reports", that.ListReports)
		router.Post("/reports/pop", that.PopReport)
	})
}

func (that *Handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.CreateGame(r.Context())
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, newGameResponse(game))
}

func (that *Handlers) Meta(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, that.meta)
}

func (that *Handlers) CreateExternalGame(w http.ResponseWriter, r *http.Request) {
	var req service.ExternalCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
		return
	}

	game, err := that.games.CreateExternalGame(r.Context(), &req)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusCreated, newGameResponse(game))
}

// FinishGame accepts the request and ends the game in the background.
func (that *Handlers) FinishGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game_id")
	ctx := context.WithoutCancel(r.Context())

	go func() {
		that.finished(gameID, that.finisher.FinishGame(ctx, gameID))
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (that *Handlers) logFinished(gameID string, err error) {
	log := that.logger.With("method", "FinishGame", "gameID", gameID)

	switch {
	case err == nil:
		log.Info("game finished")
	case errors.Is(err, apperror.ErrExternalReporting):
		log.Error("game finished but results were not reported", "error", err)
	default:
		log.Warn("failed to finish game", "error", err)
	}
}

// ListReports returns the reports the platform rejected, oldest first.
func (that *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := that.outbox.List(r.Context())
	if err != nil {
		that.writeError(w, err)
		return
	}

	if reports == nil {
		reports = []*repository.FailedReport{}
	}

	that.writeJSON(w, http.StatusOK, reports)
}

// PopReport hands the oldest rejected report over for redelivery and forgets it.
func (that *Handlers) PopReport(w http.ResponseWriter, r *http.Request) {
	report, err := that.outbox.Pop(r.Context())
	if err != nil {
		that.writeError(w, err)
		return
	}

	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	that.writeJSON(w, http.StatusOK, report)
}

func newGameResponse(game *entity.Game) GameResponse {
	players := make([]PlayerResponse, 0, len(game.Players))
	for _, player := range game.Players {
		players = append(players, PlayerResponse{PlayerID: player.ID, Symbol: player.Symbol})
	}

	return GameResponse{GameID: game.ID, Players: players}
}

func (that *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperror.ErrInvalidGameRequest):
		that.writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
	case errors.Is(err, apperror.ErrGameAlreadyExists):
		that.writeJSON(w, http.StatusConflict, ErrorResponse{Detail: err.Error()})
	default:
		that.logger.Error("request failed", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
	}
}

func (that *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Warn("failed to write response", "error", err)
	}
}
