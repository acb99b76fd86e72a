package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sessions/internal/entity"
)

// Conn is a live client connection.
type Conn interface {
	Send(ctx context.Context, msg *Message) error
}

type gameRepo interface {
	GetPlayer(ctx context.Context, gameID, playerID string) (*entity.Game, *entity.Player, error)
}

// Registry binds every (game, player) pair to at most one connection.
type Registry struct {
	logger *slog.Logger
	games  gameRepo

	mu    sync.RWMutex
	conns map[string]map[string]Conn
}

func NewRegistry(logger *slog.Logger, games gameRepo) *Registry {
	return &Registry{
		logger: logger.With("component", "registry"),
		games:  games,
		conns:  make(map[string]map[string]Conn),
	}
}

// Register binds conn to the pair unless another connection already holds it.
func (that *Registry) Register(ctx context.Context, gameID, playerID string, conn Conn) error {
	return that.Bind(ctx, gameID, playerID, conn, nil)
}

// Bind is Register with a greeting: greet runs after the pair is claimed and before conn becomes
// visible to Broadcast and Notify, so whatever greet sends reaches the client first. If greet fails
// the pair stays free. greet must not block.
func (that *Registry) Bind(ctx context.Context, gameID, playerID string, conn Conn, greet func() error) error {
	if _, _, err := that.games.GetPlayer(ctx, gameID, playerID); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.conns[gameID][playerID]; ok {
		return fmt.Errorf("%w: player %s in game %s", apperror.ErrAlreadyRegistered, playerID, gameID)
	}

	if greet != nil {
		if err := greet(); err != nil {
			return err
		}
	}

	players, ok := that.conns[gameID]
	if !ok {
		players = make(map[string]Conn)
		that.conns[gameID] = players
	}

	players[playerID] = conn

	that.logger.Info("connection registered", "gameID", gameID, "playerID", playerID)

	return nil
}

func (that *Registry) Unregister(gameID, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	players, ok := that.conns[gameID]
	if !ok {
		return
	}

	if _, ok = players[playerID]; !ok {
		return
	}

	delete(players, playerID)
	if len(players) == 0 {
		delete(that.conns, gameID)
	}

	that.logger.Info("connection unregistered", "gameID", gameID, "playerID", playerID)
}

func (that *Registry) Lookup(gameID, playerID string) (Conn, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	conn, ok := that.conns[gameID][playerID]

	return conn, ok
}

// Broadcast sends to every connection of the game concurrently and waits for all sends.
// A failed send is logged and does not affect the others.
func (that *Registry) Broadcast(ctx context.Context, gameID, action string, data any) {
	log := that.logger.With("method", "Broadcast", "gameID", gameID, "action", action)

	that.mu.RLock()
	targets := make(map[string]Conn, len(that.conns[gameID]))
	for playerID, conn := range that.conns[gameID] {
		targets[playerID] = conn
	}
	that.mu.RUnlock()

	msg := &Message{Action: action, Data: data, IsSuccess: true}

	var wg sync.WaitGroup
	for playerID, conn := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Send(ctx, msg); err != nil {
				log.Warn("failed to deliver message", "playerID", playerID, "error", err)
			}
		}()
	}
	wg.Wait()
}

// Notify sends to the connection of one player. It returns false if the player is not connected
// or the send failed.
func (that *Registry) Notify(ctx context.Context, gameID, playerID, action string, data any) bool {
	conn, ok := that.Lookup(gameID, playerID)
	if !ok {
		return false
	}

	if err := conn.Send(ctx, &Message{Action: action, Data: data, IsSuccess: true}); err != nil {
		that.logger.Warn("failed to deliver message",
			"gameID", gameID, "playerID", playerID, "action", action, "error", err)
		return false
	}

	return true
}
