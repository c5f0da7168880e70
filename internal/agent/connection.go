// ABOUTME: The agent's side of its WebSocket link to the gateway.
// ABOUTME: Serializes all writes through one goroutine so concurrent executions can report safely.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/shellcast/internal/command"
)

// ErrConnectionClosed is returned by Send after the connection has been closed.
var ErrConnectionClosed = errors.New("connection closed")

const outboxSize = 64

// Connection wraps a dialed gateway socket. Send may be called from any
// goroutine; writeLoop is the only writer on the socket.
type Connection struct {
	ws           *websocket.Conn
	outbox       chan []byte
	writeTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, writeTimeout time.Duration, logger *slog.Logger) *Connection {
	return &Connection{
		ws:           ws,
		outbox:       make(chan []byte, outboxSize),
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Send queues c for delivery to the gateway. It blocks while the outbox is
// full and gives up when ctx is done or the connection closes.
func (c *Connection) Send(ctx context.Context, cmd command.Command) error {
	data, err := command.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	// Nothing drains the outbox once the connection is done.
	select {
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive reads and decodes the next command. Frames that fail to decode are
// returned as errors wrapping command.ErrInvalidCommand so the caller can skip
// them and keep reading.
func (c *Connection) Receive() (command.Command, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return command.Command{}, err
	}
	return command.Decode(data)
}

func (c *Connection) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrConnectionClosed
		case data := <-c.outbox:
			if c.writeTimeout > 0 {
				if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					return err
				}
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("writing to gateway: %w", err)
			}
		}
	}
}

// Close says goodbye to the gateway and releases the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
