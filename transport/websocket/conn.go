package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/session"
)

const maxMessageSize = 4096

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer is full")
)

// conn adapts a websocket to a session connection. Writes go through a buffered queue
// drained by writePump, so a slow client never blocks the sender.
type conn struct {
	logger *slog.Logger
	ws     *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	writeWait time.Duration
	pongWait  time.Duration
}

func newConn(logger *slog.Logger, ws *websocket.Conn, opts Options) *conn {
	return &conn{
		logger:    logger,
		ws:        ws,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
		writeWait: opts.WriteWait,
		pongWait:  opts.PongWait,
	}
}

// Send queues msg for delivery without waiting for the client.
func (that *conn) Send(ctx context.Context, msg *session.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case <-that.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case that.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

func (that *conn) close() {
	that.closeOnce.Do(func() {
		close(that.done)
	})
}

// readPump feeds inbound messages to handle until the client goes away.
func (that *conn) readPump(ctx context.Context, handle func(ctx context.Context, raw []byte) error) {
	log := that.logger.With("method", "readPump")

	defer that.close()

	that.ws.SetReadLimit(maxMessageSize)
	_ = that.ws.SetReadDeadline(time.Now().Add(that.pongWait))
	that.ws.SetPongHandler(func(string) error {
		return that.ws.SetReadDeadline(time.Now().Add(that.pongWait))
	})

	for {
		_, raw, err := that.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		if err = handle(ctx, raw); err != nil {
			log.Warn("failed to answer message", "error", err)
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (that *conn) writePump() {
	log := that.logger.With("method", "writePump")

	ticker := time.NewTicker(that.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = that.ws.Close()
	}()

	for {
		select {
		case data := <-that.send:
			_ = that.ws.SetWriteDeadline(time.Now().Add(that.writeWait))
			if err := that.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("failed to write message", "error", err)
				that.close()
				return
			}

		case <-ticker.C:
			_ = that.ws.SetWriteDeadline(time.Now().Add(that.writeWait))
			if err := that.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				that.close()
				return
			}

		case <-that.done:
			_ = that.ws.SetWriteDeadline(time.Now().Add(that.writeWait))
			_ = that.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
