// ABOUTME: Gateway orchestrator that owns the command ledger, agent broadcaster, and HTTP server
// ABOUTME: Manages agent WebSocket sessions, the optional generator, and health endpoints lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/shellcast/internal/config"
	"github.com/2389/shellcast/internal/dispatch"
	"github.com/2389/shellcast/internal/generator"
	"github.com/2389/shellcast/internal/ledger"
	"github.com/2389/shellcast/internal/metrics"
	"github.com/2389/shellcast/internal/session"
)

// AgentPath is where agents open their WebSocket.
const AgentPath = "/ws"

const readHeaderTimeout = 10 * time.Second

// Gateway orchestrates the shellcast server components.
type Gateway struct {
	config      *config.Config
	ledger      *ledger.Ledger
	broadcaster *dispatch.Broadcaster
	sessions    *session.Session
	generator   *generator.Generator
	metrics     *metrics.Metrics
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	tailnet     *tailnet
	logger      *slog.Logger

	// baseCtx outlives individual requests; cancelling it ends every agent session.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	active  sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Gateway from cfg. Nothing listens until Run is called.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := ledger.New()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(func() float64 { return float64(l.Len()) })
	}

	bcast := dispatch.NewBroadcaster(logger,
		dispatch.WithBufferSize(cfg.Agents.BufferSize),
		dispatch.WithMetrics(m),
	)

	baseCtx, baseCancel := context.WithCancel(context.Background())

	gw := &Gateway{
		config:      cfg,
		ledger:      l,
		broadcaster: bcast,
		sessions: session.New(session.Params{
			Ledger:      l,
			Broadcaster: bcast,
			Metrics:     m,
			Logger:      logger.With("component", "session"),
		}),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Agents are not browsers and there is no agent authentication.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:     logger.With("component", "gateway"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	if cfg.Generator.Enabled {
		gw.generator = generator.New(bcast, generator.Options{
			Interval: cfg.Generator.Interval,
			Command:  cfg.Generator.Command,
			Metrics:  m,
		}, logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/commands", gw.handleCommands)
	mux.HandleFunc("/api/commands/", gw.handleGetCommand)
	mux.HandleFunc(AgentPath, gw.handleAgentSocket)
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	if m != nil {
		mux.Handle(cfg.Metrics.Path, m.Handler())
		gw.logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return gw, nil
}

// Handler returns the gateway's HTTP handler, for mounting on a test server.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Ledger exposes the command ledger.
func (g *Gateway) Ledger() *ledger.Ledger {
	return g.ledger
}

// AgentCount returns the number of connected agents.
func (g *Gateway) AgentCount() int {
	return g.broadcaster.Count()
}

// listen opens the gateway's listener: a tailnet node when Tailscale is
// enabled, otherwise a TCP socket on server.http_addr.
func (g *Gateway) listen(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if addr := g.config.Server.HTTPAddr; addr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", addr)
		}
		g.tailnet = newTailnet(g.config.Tailscale, g.logger)
		return g.tailnet.listen(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", g.config.Server.HTTPAddr, err)
	}
	return ln, nil
}

// Run opens the configured listener and serves until ctx is cancelled.
// It returns nil after a clean shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.listen(ctx)
	if err != nil {
		return err
	}
	return g.Serve(ctx, ln)
}

// Serve is Run on a listener the caller already opened. The generator, if
// configured, runs for as long as Serve does.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	genCtx, stopGenerator := context.WithCancel(ctx)
	defer stopGenerator()
	if g.generator != nil {
		go g.generator.Run(genCtx)
	}

	serveErr := make(chan error, 1)
	go func() {
		g.logger.Info("listening", "addr", ln.Addr().String(), "agent_path", AgentPath)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		g.logger.Info("stop requested")
	case runErr = <-serveErr:
		g.logger.Error("http server failed", "error", runErr)
	}
	stopGenerator()

	// ctx is already done; shutdown gets its own deadline.
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// Shutdown stops accepting connections, ends every agent session, and waits
// for sessions to finish or ctx to expire. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "agents", g.broadcaster.Count(), "commands", g.ledger.Len())

	g.mu.Lock()
	g.closing = true
	g.mu.Unlock()

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	// Hijacked WebSocket connections are not tracked by http.Server.
	g.baseCancel()
	g.broadcaster.Close()

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for agent sessions: %w", ctx.Err()))
	}

	if g.tailnet != nil {
		if err := g.tailnet.close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale: %w", err))
		}
	}

	return errors.Join(errs...)
}
