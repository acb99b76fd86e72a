package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/service"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/tictactoe"
)

type State int

const (
	StateConnected State = iota
	StateAuthenticated
	StateRegistered
	StateClosed
)

func (that State) String() string {
	switch that {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	errorTypeAuthentication = "authentication_error"
	errorTypeProtocol       = "protocol_error"
	errorTypeNotFound       = "not_found"
	errorTypeInternal       = "internal_error"
)

type verifier interface {
	Verify(ctx context.Context, token string) (*service.Claims, error)
}

type registry interface {
	Bind(ctx context.Context, gameID, playerID string, conn Conn, greet func() error) error
	Unregister(gameID, playerID string)
}

type engine interface {
	Attack(ctx context.Context, gameID, playerID string, coordinate int) error
	Synchronize(ctx context.Context, gameID, playerID string, deliver func(*tictactoe.SynchronizePayload) error) error
	PlayerLeft(ctx context.Context, gameID, playerID string)
}

type handlerFunc func(ctx context.Context, data json.RawMessage) error

// Session is the protocol state of one client connection. Messages of a session are handled
// one at a time.
type Session struct {
	logger *slog.Logger

	verifier verifier
	registry registry
	engine   engine
	conn     Conn

	handlers map[string]handlerFunc

	mu       sync.Mutex
	state    State
	gameID   string
	playerID string

	// pathPlayerID is the player id the connection URL was opened with, if any.
	pathPlayerID string
}

// NewSession starts a session in the connected state. gameID and playerID come from the
// connection URL and may be empty.
func NewSession(
	logger *slog.Logger,
	verifier verifier,
	registry registry,
	engine engine,
	conn Conn,
	gameID, playerID string,
) *Session {
	session := &Session{
		logger:       logger.With("component", "session"),
		verifier:     verifier,
		registry:     registry,
		engine:       engine,
		conn:         conn,
		state:        StateConnected,
		gameID:       gameID,
		pathPlayerID: playerID,
	}

	session.handlers = map[string]handlerFunc{
		ActionAuth:   session.handleAuth,
		ActionAttack: session.handleAttack,
	}

	return session
}

func (that *Session) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// Handle processes one raw inbound message. Failures are answered on the same connection;
// the returned error is only a failure to write that answer.
func (that *Session) Handle(ctx context.Context, raw []byte) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state == StateClosed {
		return nil
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return that.sendError(ctx, actionRoot, fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err))
	}

	if err := that.dispatch(ctx, &req); err != nil {
		return that.sendError(ctx, req.Action, err)
	}

	return nil
}

func (that *Session) dispatch(ctx context.Context, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %q panicked: %v", req.Action, r)
		}
	}()

	handler, ok := that.handlers[req.Action]
	if !ok {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownAction, req.Action)
	}

	return handler(ctx, req.Data)
}

func (that *Session) handleAuth(ctx context.Context, data json.RawMessage) error {
	log := that.logger.With("method", "handleAuth")

	if that.state != StateConnected {
		return apperror.ErrAlreadyAuthenticated
	}

	var req AuthRequest
	if err := unmarshalData(data, &req); err != nil {
		return err
	}

	claims, err := that.verifier.Verify(ctx, req.Token)
	if err != nil {
		log.Info("token rejected", "error", err)
		return err
	}

	if that.pathPlayerID != "" && that.pathPlayerID != claims.Subject {
		return fmt.Errorf("%w: token subject does not match player", apperror.ErrAuthentication)
	}

	that.playerID = claims.Subject
	that.state = StateAuthenticated

	if that.gameID == "" {
		that.gameID = req.GameID
	}

	if that.gameID == "" {
		return that.send(ctx, ActionAuth, AuthResponse{PlayerID: that.playerID})
	}

	return that.register(ctx)
}

// register binds the authenticated player to its game. The auth answer and the snapshot are queued
// while the game is locked and before the connection is visible to broadcasts, so the client never
// sees a move ahead of its snapshot. A move already in the snapshot may still arrive once more
// if its broadcast was in flight.
func (that *Session) register(ctx context.Context) error {
	log := that.logger.With("method", "register", "gameID", that.gameID, "playerID", that.playerID)

	err := that.engine.Synchronize(ctx, that.gameID, that.playerID, func(snapshot *tictactoe.SynchronizePayload) error {
		return that.registry.Bind(ctx, that.gameID, that.playerID, that.conn, func() error {
			if err := that.send(ctx, ActionAuth, AuthResponse{PlayerID: that.playerID, IsRegistered: true}); err != nil {
				return err
			}

			return that.send(ctx, tictactoe.ActionSynchronize, snapshot)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}

	that.state = StateRegistered

	log.Info("player joined")

	return nil
}

func (that *Session) handleAttack(ctx context.Context, data json.RawMessage) error {
	if that.state != StateRegistered {
		return apperror.ErrNotRegistered
	}

	var req AttackRequest
	if err := unmarshalData(data, &req); err != nil {
		return err
	}

	if req.Coordinate == nil {
		return fmt.Errorf("%w: coordinate is required", apperror.ErrInvalidPayload)
	}

	return that.engine.Attack(ctx, that.gameID, that.playerID, *req.Coordinate)
}

// Close releases the registration of the session. Calling it more than once is a no-op.
func (that *Session) Close(ctx context.Context) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.state == StateClosed {
		return
	}

	if that.state == StateRegistered {
		that.registry.Unregister(that.gameID, that.playerID)
		that.engine.PlayerLeft(ctx, that.gameID, that.playerID)
	}

	that.state = StateClosed
}

func (that *Session) send(ctx context.Context, action string, data any) error {
	if err := that.conn.Send(ctx, &Message{Action: action, Data: data, IsSuccess: true}); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}

	return nil
}

func (that *Session) sendError(ctx context.Context, action string, cause error) error {
	payload := that.errorPayload(action, cause)

	if err := that.conn.Send(ctx, &Message{Action: action, Data: payload, IsSuccess: false}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func (that *Session) errorPayload(action string, err error) ErrorPayload {
	switch {
	case errors.Is(err, apperror.ErrAuthentication):
		return ErrorPayload{Type: errorTypeAuthentication, Detail: err.Error()}
	case apperror.IsProtocolState(err):
		return ErrorPayload{Type: errorTypeProtocol, Detail: err.Error()}
	case errors.Is(err, apperror.ErrNotFound):
		return ErrorPayload{Type: errorTypeNotFound, Detail: err.Error()}
	default:
		that.logger.Error("failed to handle message",
			"action", action, "gameID", that.gameID, "playerID", that.playerID, "error", err)
		return ErrorPayload{Type: errorTypeInternal, Detail: "internal error"}
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data is required", apperror.ErrInvalidPayload)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrInvalidPayload, err)
	}

	return nil
}
