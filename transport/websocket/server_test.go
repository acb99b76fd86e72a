package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/platform"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/service"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/session"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/tictactoe"
)

const (
	testGameID  = "game-1"
	testPlayerA = "player-a"
	testPlayerB = "player-b"
	readTimeout = 2 * time.Second
)

// subjectVerifier accepts "Bearer <subject>" tokens.
type subjectVerifier struct{}

func (subjectVerifier) Verify(_ context.Context, token string) (*service.Claims, error) {
	subject, ok := strings.CutPrefix(token, "Bearer ")
	if !ok || subject == "" {
		return nil, service.ErrMalformedHeader
	}

	return &service.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}, nil
}

type nopReporter struct{}

func (nopReporter) AddResults(context.Context, string, *platform.Results) error { return nil }

func (nopReporter) QuitPlayer(context.Context, string, string) error { return nil }

type inbound struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	IsSuccess bool            `json:"is_success"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	games := repository.NewGameRepository()
	require.NoError(t, games.Create(context.Background(), entity.NewGame(testGameID, [2]*entity.Player{
		entity.NewPlayer(testPlayerA, testGameID, "A", entity.SymbolX),
		entity.NewPlayer(testPlayerB, testGameID, "B", entity.SymbolO),
	}, 0, false)))

	registry := session.NewRegistry(logger, games)
	engine := tictactoe.NewEngine(logger, games, registry, nopReporter{}, repository.NewNopReportOutbox())

	server := New(logger, func(conn session.Conn, gameID, playerID string) *session.Session {
		return session.NewSession(logger, subjectVerifier{}, registry, engine, conn, gameID, playerID)
	}, Options{SendBuffer: 16, WriteWait: time.Second, PongWait: 10 * time.Second})

	router := chi.NewRouter()
	server.Routes(router)

	httpServer := httptest.NewServer(router)
	t.Cleanup(httpServer.Close)

	return httpServer
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path

	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })

	return ws
}

func send(t *testing.T, ws *websocket.Conn, action string, data any) {
	t.Helper()

	require.NoError(t, ws.WriteJSON(map[string]any{"action": action, "data": data}))
}

func receive(t *testing.T, ws *websocket.Conn) inbound {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(readTimeout)))

	var msg inbound
	require.NoError(t, ws.ReadJSON(&msg))

	return msg
}

func authenticate(t *testing.T, ws *websocket.Conn, playerID string) tictactoe.SynchronizePayload {
	t.Helper()

	send(t, ws, session.ActionAuth, map[string]string{"token": "Bearer " + playerID})

	ack := receive(t, ws)
	require.Equal(t, session.ActionAuth, ack.Action)
	require.True(t, ack.IsSuccess, string(ack.Data))

	synced := receive(t, ws)
	require.Equal(t, tictactoe.ActionSynchronize, synced.Action)

	var payload tictactoe.SynchronizePayload
	require.NoError(t, json.Unmarshal(synced.Data, &payload))

	return payload
}

func TestServer_Game(t *testing.T) {
	// Given
	server := newTestServer(t)
	wsA := dial(t, server, "/ws/"+testGameID+"/"+testPlayerA)
	wsB := dial(t, server, "/ws/"+testGameID)

	syncA := authenticate(t, wsA, testPlayerA)
	syncB := authenticate(t, wsB, testPlayerB)

	assert.True(t, syncA.Player.IsTurn)
	assert.Equal(t, entity.SymbolX, syncA.Player.Symbol)
	assert.False(t, syncB.Player.IsTurn)
	assert.Len(t, syncB.Map, entity.BoardSize)

	// When
	send(t, wsA, session.ActionAttack, map[string]int{"coordinate": 0})

	// Then
	for _, ws := range []*websocket.Conn{wsA, wsB} {
		msg := receive(t, ws)
		require.Equal(t, tictactoe.ActionAttack, msg.Action)
		assert.JSONEq(t, `{"coordinate":0,"symbol":"X"}`, string(msg.Data))
	}

	turn := receive(t, wsB)
	assert.Equal(t, tictactoe.ActionStartTurn, turn.Action)
	assert.JSONEq(t, `{"is_turn":true}`, string(turn.Data))

	// When
	send(t, wsB, session.ActionAttack, map[string]int{"coordinate": 0})

	// Then
	rejected := receive(t, wsB)
	assert.Equal(t, session.ActionAttack, rejected.Action)
	assert.False(t, rejected.IsSuccess)
	assert.Contains(t, string(rejected.Data), apperror.ErrCellOccupied.Error())
}

func TestServer_AuthRejected(t *testing.T) {
	// Given
	server := newTestServer(t)
	ws := dial(t, server, "/ws/"+testGameID)

	// When
	send(t, ws, session.ActionAuth, map[string]string{"token": "nope"})

	// Then
	msg := receive(t, ws)
	assert.Equal(t, session.ActionAuth, msg.Action)
	assert.False(t, msg.IsSuccess)

	// the connection stays usable
	authenticate(t, ws, testPlayerA)
}

func TestServer_ReconnectAfterClose(t *testing.T) {
	// Given
	server := newTestServer(t)
	first := dial(t, server, "/ws/"+testGameID)
	authenticate(t, first, testPlayerA)

	// When
	require.NoError(t, first.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = first.Close()

	// Then
	deadline := time.Now().Add(readTimeout)
	for {
		second := dial(t, server, "/ws/"+testGameID)
		send(t, second, session.ActionAuth, map[string]string{"token": "Bearer " + testPlayerA})
		if receive(t, second).IsSuccess {
			return
		}

		require.True(t, time.Now().Before(deadline), "first connection was never released")
		time.Sleep(50 * time.Millisecond)
	}
}
