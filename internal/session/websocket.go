// ABOUTME: Adapts a gorilla/websocket connection to the session Conn interface.
// ABOUTME: Text frames carry one JSON command each; close errors are classified here.

package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/shellcast/internal/command"
)

// DefaultReadLimit bounds a single agent message. Agents shrink results to
// the same limit before sending.
const DefaultReadLimit = command.MaxMessageSize

// WebSocketOptions tunes the adapter. Zero values pick defaults.
type WebSocketOptions struct {
	WriteTimeout time.Duration
	ReadLimit    int64
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWebSocketConn wraps conn for use with Session.Serve.
func NewWebSocketConn(conn *websocket.Conn, opts WebSocketOptions) Conn {
	limit := opts.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)
	return &wsConn{conn: conn, writeTimeout: opts.WriteTimeout}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame on a best-effort basis and closes the socket.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// IsNormalClose reports whether err is an expected way for a session to end:
// the agent hung up cleanly, the gateway shut down, or the socket was closed
// by the other role.
func IsNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrDeliveryClosed) || errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return false
}
