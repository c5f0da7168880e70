// ABOUTME: Liveness and readiness endpoints
// ABOUTME: Readiness means at least one agent is connected to receive commands

package gateway

import (
	"fmt"
	"net/http"
)

// handleHealth answers 200 while the process is serving.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	n := g.broadcaster.Count()
	if n == 0 {
		writeText(w, http.StatusServiceUnavailable, "no agents connected")
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("ready (%d agents)", n))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
