package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/service"
)

const testAPIKey = "secret"

type mockGames struct {
	mock.Mock
}

func (that *mockGames) CreateGame(ctx context.Context) (*entity.Game, error) {
	args := that.Called(ctx)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

func (that *mockGames) CreateExternalGame(ctx context.Context, req *service.ExternalCreateRequest) (*entity.Game, error) {
	args := that.Called(ctx, req)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

type mockFinisher struct {
	mock.Mock
}

func (that *mockFinisher) FinishGame(ctx context.Context, gameID string) error {
	return that.Called(ctx, gameID).Error(0)
}

type mockOutbox struct {
	mock.Mock
}

func (that *mockOutbox) List(ctx context.Context) ([]*repository.FailedReport, error) {
	args := that.Called(ctx)
	reports, _ := args.Get(0).([]*repository.FailedReport)
	return reports, args.Error(1)
}

func (that *mockOutbox) Pop(ctx context.Context) (*repository.FailedReport, error) {
	args := that.Called(ctx)
	report, _ := args.Get(0).(*repository.FailedReport)
	return report, args.Error(1)
}

type fixture struct {
	router   chi.Router
	games    *mockGames
	finisher *mockFinisher
	outbox   *mockOutbox
	handlers *Handlers
}

func newFixture() *fixture {
	f := &fixture{
		router:   chi.NewRouter(),
		games:    &mockGames{},
		finisher: &mockFinisher{},
		outbox:   &mockOutbox{},
	}
	f.handlers = NewHandlers(slog.New(slog.NewTextHandler(io.Discard, nil)), f.games, f.finisher, f.outbox, testAPIKey)
	f.handlers.Routes(f.router)

	return f
}

func (that *fixture) do(method, path, body string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}

	rec := httptest.NewRecorder()
	that.router.ServeHTTP(rec, req)

	return rec
}

func testGame(external bool) *entity.Game {
	return entity.NewGame("g", [2]*entity.Player{
		entity.NewPlayer("a", "g", "", entity.SymbolX),
		entity.NewPlayer("b", "g", "", entity.SymbolO),
	}, 0, external)
}

func TestHandlers_Ping(t *testing.T) {
	// Given
	f := newFixture()

	// When
	rec := f.do(http.MethodGet, "/ping", "", false)

	// Then
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestHandlers_CreateGame(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		// Given
		f := newFixture()
		f.games.On("CreateGame", mock.Anything).Return(testGame(false), nil)

		// When
		rec := f.do(http.MethodPost, "/create", "", false)

		// Then
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"game_id":"g","players":[{"player_id":"a","symbol":"X"},{"player_id":"b","symbol":"O"}]}`,
			rec.Body.String())
	})

	t.Run("failure is not leaked", func(t *testing.T) {
		// Given
		f := newFixture()
		f.games.On("CreateGame", mock.Anything).Return(nil, errors.New("disk on fire"))

		// When
		rec := f.do(http.MethodPost, "/create", "", false)

		// Then
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk")
	})
}

func TestHandlers_External(t *testing.T) {
	t.Run("requires the api key", func(t *testing.T) {
		// Given
		f := newFixture()

		// When
		rec := f.do(http.MethodGet, "/external/meta", "", false)

		// Then
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no configured key admits nothing", func(t *testing.T) {
		// Given
		router := chi.NewRouter()
		NewHandlers(slog.New(slog.NewTextHandler(io.Discard, nil)), &mockGames{}, &mockFinisher{}, &mockOutbox{}, "").
			Routes(router)
		req := httptest.NewRequest(http.MethodGet, "/external/meta", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()

		// When
		router.ServeHTTP(rec, req)

		// Then
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("meta", func(t *testing.T) {
		// Given
		f := newFixture()

		// When
		rec := f.do(http.MethodGet, "/external/meta", "", true)

		// Then
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "alabugaMeta")
	})

	t.Run("create", func(t *testing.T) {
		// Given
		f := newFixture()
		f.games.On("CreateExternalGame", mock.Anything, mock.MatchedBy(func(req *service.ExternalCreateRequest) bool {
			return req.AssessmentID == "g" && len(req.Players) == 2 && req.Players[0].Role == "player_2" &&
				req.Params.SymbolPlayer1 == "X"
		})).Return(testGame(true), nil)

		body := `{"assessment_id":"g","players":[{"uid":"a","name":"A","role":"player_2"},` +
			`{"uid":"b","name":"B","role":"player_1"}],"params":{"symbol_player_1":"X","symbol_player_2":"O"}}`

		// When
		rec := f.do(http.MethodPost, "/external/create", body, true)

		// Then
		assert.Equal(t, http.StatusCreated, rec.Code)
		f.games.AssertExpectations(t)
	})

	t.Run("create with invalid request", func(t *testing.T) {
		// Given
		f := newFixture()
		f.games.On("CreateExternalGame", mock.Anything, mock.Anything).
			Return(nil, apperror.ErrInvalidGameRequest)

		// When
		rec := f.do(http.MethodPost, "/external/create", `{}`, true)

		// Then
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create with malformed body", func(t *testing.T) {
		// Given
		f := newFixture()

		// When
		rec := f.do(http.MethodPost, "/external/create", `{`, true)

		// Then
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.games.AssertNotCalled(t, "CreateExternalGame", mock.Anything, mock.Anything)
	})

	t.Run("create an existing game", func(t *testing.T) {
		// Given
		f := newFixture()
		f.games.On("CreateExternalGame", mock.Anything, mock.Anything).
			Return(nil, apperror.ErrGameAlreadyExists)

		// When
		rec := f.do(http.MethodPost, "/external/create", `{}`, true)

		// Then
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandlers_FinishGame(t *testing.T) {
	// Given
	f := newFixture()
	release := make(chan time.Time)
	done := make(chan error, 1)

	f.finisher.On("FinishGame", mock.Anything, "g").
		WaitUntil(release).
		Return(apperror.ErrExternalReporting)
	f.handlers.finished = func(gameID string, err error) {
		assert.Equal(t, "g", gameID)
		done <- err
	}

	// When
	rec := f.do(http.MethodPost, "/external/finish/g", "", true)

	// Then
	assert.Equal(t, http.StatusAccepted, rec.Code)

	close(release)
	select {
	case err := <-done:
		require.ErrorIs(t, err, apperror.ErrExternalReporting)
	case <-time.After(2 * time.Second):
		t.Fatal("finish was never run")
	}
}

func TestHandlers_Reports(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		// Given
		f := newFixture()
		f.outbox.On("List", mock.Anything).Return([]*repository.FailedReport{
			{GameID: "g", Kind: "add", Payload: json.RawMessage(`{"players":[]}`), Reason: "status 500"},
		}, nil)

		// When
		rec := f.do(http.MethodGet, "/external/reports", "", true)

		// Then
		require.Equal(t, http.StatusOK, rec.Code)

		var reports []repository.FailedReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
		require.Len(t, reports, 1)
		assert.Equal(t, "add", reports[0].Kind)
	})

	t.Run("empty list", func(t *testing.T) {
		// Given
		f := newFixture()
		f.outbox.On("List", mock.Anything).Return(nil, nil)

		// When
		rec := f.do(http.MethodGet, "/external/reports", "", true)

		// Then
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("pop", func(t *testing.T) {
		// Given
		f := newFixture()
		f.outbox.On("Pop", mock.Anything).Return(&repository.FailedReport{GameID: "g", Payload: json.RawMessage(`{}`)}, nil).Once()
		f.outbox.On("Pop", mock.Anything).Return(nil, nil).Once()

		// When
		first := f.do(http.MethodPost, "/external/reports/pop", "", true)
		second := f.do(http.MethodPost, "/external/reports/pop", "", true)

		// Then
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Contains(t, first.Body.String(), `"game_id":"g"`)
		assert.Equal(t, http.StatusNoContent, second.Code)
	})
}
