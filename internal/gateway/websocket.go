// ABOUTME: Upgrades agent HTTP requests to WebSocket and hands them to a session.
// ABOUTME: Sessions are tied to the gateway's lifetime, not the request's.

package gateway

import (
	"net/http"

	"github.com/2389/shellcast/internal/session"
)

// handleAgentSocket handles GET /ws. The handler blocks for the life of the agent connection.
func (g *Gateway) handleAgentSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		http.Error(w, "gateway shutting down", http.StatusServiceUnavailable)
		return
	}
	g.active.Add(1)
	g.mu.Unlock()
	defer g.active.Done()

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		g.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	logger := g.logger.With("remote_addr", r.RemoteAddr)
	logger.Info("=== AGENT CONNECTED ===")

	conn := session.NewWebSocketConn(ws, session.WebSocketOptions{
		WriteTimeout: g.config.Server.WriteTimeout,
	})
	err = g.sessions.Serve(g.baseCtx, conn)

	if session.IsNormalClose(err) {
		logger.Info("=== AGENT DISCONNECTED ===", "agents", g.broadcaster.Count())
		return
	}
	logger.Warn("=== AGENT DISCONNECTED ===", "agents", g.broadcaster.Count(), "error", err)
}
