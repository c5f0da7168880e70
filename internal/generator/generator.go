// ABOUTME: Emits a synthetic Pending command on a fixed interval to exercise the pipeline.
// ABOUTME: Runs until its context is cancelled; used as a smoke test without a submitter.

package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/shellcast/internal/command"
	"github.com/2389/shellcast/internal/metrics"
)

// Defaults for the diagnostic command.
const (
	DefaultInterval = 3 * time.Second
	DefaultCommand  = "echo hello world"
)

// Publisher fans a command out to connected agents.
type Publisher interface {
	Broadcast(c command.Command) int
}

// Options configures the generator. Zero values pick defaults.
type Options struct {
	Interval time.Duration
	Command  string
	Metrics  *metrics.Metrics
}

// Generator periodically broadcasts a fresh Pending command.
type Generator struct {
	pub      Publisher
	interval time.Duration
	cmd      string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Generator.
func New(pub Publisher, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	cmd := opts.Command
	if cmd == "" {
		cmd = DefaultCommand
	}
	return &Generator{
		pub:      pub,
		interval: interval,
		cmd:      cmd,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "generator"),
	}
}

// Run broadcasts one command per tick until ctx is done.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.logger.Info("generator started", "interval", g.interval, "cmd", g.cmd)
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("generator stopped")
			return
		case <-ticker.C:
			g.emit()
		}
	}
}

func (g *Generator) emit() {
	c := command.New(g.cmd)
	n := g.pub.Broadcast(c)
	g.metrics.Submitted("generator")
	g.logger.Debug("generated command", "command_id", c.ID, "delivered", n)
}
