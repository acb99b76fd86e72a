package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/session"
)

type Options struct {
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
}

// SessionFactory starts the protocol state of a new connection. gameID and playerID come from the URL
// and may be empty.
type SessionFactory func(conn session.Conn, gameID, playerID string) *session.Session

type Server struct {
	logger     *slog.Logger
	newSession SessionFactory
	upgrader   websocket.Upgrader
	opts       Options
}

func New(logger *slog.Logger, newSession SessionFactory, opts Options) *Server {
	return &Server{
		logger:     logger.With("component", "websocket"),
		newSession: newSession,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		opts: opts,
	}
}

// Routes mounts the websocket endpoints.
func (that *Server) Routes(router chi.Router) {
	router.Get("/ws", that.serve)
	router.Get("/ws/{game_id}", that.serve)
	router.Get("/ws/{game_id}/{player_id}", that.serve)
}

func (that *Server) serve(writer http.ResponseWriter, req *http.Request) {
	gameID := chi.URLParam(req, "game_id")
	playerID := chi.URLParam(req, "player_id")

	log := that.logger.With("method", "serve", "gameID", gameID, "playerID", playerID)

	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := newConn(that.logger, ws, that.opts)
	sess := that.newSession(client, gameID, playerID)

	log.Info("WebSocket connection established")

	go client.writePump()

	// the request context is canceled once the handler returns, sessions outlive it
	ctx := context.WithoutCancel(req.Context())
	go func() {
		client.readPump(ctx, sess.Handle)
		sess.Close(ctx)
		log.Info("WebSocket connection closed")
	}()
}
