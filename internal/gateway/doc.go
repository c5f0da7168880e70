// Package gateway orchestrates the shellcast server components.
//
// # Overview
//
// The gateway is the coordinator: it owns the command ledger and the agent
// broadcaster, accepts agent WebSocket connections, and serves the HTTP API
// that submitters use. Everything lives in memory for the life of the process.
//
// # Gateway Struct
//
//	type Gateway struct {
//	    config      *config.Config
//	    ledger      *ledger.Ledger
//	    broadcaster *dispatch.Broadcaster
//	    sessions    *session.Session
//	    generator   *generator.Generator  // nil unless generator.enabled
//	    metrics     *metrics.Metrics      // nil unless metrics.enabled
//	    httpServer  *http.Server
//	    tailnet     *tailnet              // nil unless tailscale.enabled
//	}
//
// # HTTP API
//
//   - POST /api/commands - Submit a command; broadcast to every agent
//   - GET /api/commands - Ledger snapshot, oldest first
//   - GET /api/commands/{id} - One ledger entry
//   - GET /ws - Agent WebSocket
//   - GET /health - Liveness check
//   - GET /health/ready - 200 when at least one agent is connected
//   - GET /metrics - Prometheus metrics (path configurable)
//
// A submission body is {"cmd": "..."} with optional "id" and "status". A
// status other than "Pending" is rejected with 400; reusing an ID already in
// the ledger is rejected with 409.
//
// # Command Flow
//
//  1. A submission (or the generator) creates a Pending command
//  2. The broadcaster queues a copy on every agent's delivery channel
//  3. Each agent session writes it to its socket
//  4. Agents execute it and send back Completed or Failed
//  5. The session records the result in the ledger
//  6. The result is broadcast to every agent so all of them see the outcome
//
// Every connected agent runs every command. When several agents report
// different outcomes for one ID, the last one recorded is what the ledger shows.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// With tailscale.enabled the gateway joins the tailnet as its own node through
// tsnet and serves on port 80 there instead of server.http_addr.
//
// Shutdown stops the HTTP server, ends every agent session by cancelling the
// gateway's base context and closing the broadcaster, and waits for sessions
// to finish within the configured shutdown timeout.
package gateway
