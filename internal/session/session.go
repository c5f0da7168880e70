// ABOUTME: Per-agent duplex loop: forwards broadcast commands out, records results coming in.
// ABOUTME: The two roles race; when either ends the connection is closed and the other stops.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/2389/shellcast/internal/command"
	"github.com/2389/shellcast/internal/dispatch"
	"github.com/2389/shellcast/internal/ledger"
	"github.com/2389/shellcast/internal/metrics"
)

// ErrDeliveryClosed is returned when the broadcaster closed this session's
// delivery channel, normally during gateway shutdown.
var ErrDeliveryClosed = errors.New("delivery channel closed")

// Conn is a message-oriented duplex connection to one agent.
// ReadMessage and WriteMessage are each called from a single goroutine;
// Close may be called concurrently with both.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Params holds the shared services a session works against.
type Params struct {
	Ledger      *ledger.Ledger
	Broadcaster *dispatch.Broadcaster
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Session serves agent connections against a shared ledger and broadcaster.
// One Session value can serve any number of connections concurrently.
type Session struct {
	ledger      *ledger.Ledger
	broadcaster *dispatch.Broadcaster
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates a Session.
func New(p Params) *Session {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ledger:      p.Ledger,
		broadcaster: p.Broadcaster,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// Serve runs the session for conn until the connection ends, the delivery
// channel is closed, or ctx is cancelled. The agent's delivery channel is
// registered for the duration of the call and removed before it returns.
// conn is always closed on return.
func (s *Session) Serve(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries, subID := s.broadcaster.Register(ctx)
	defer s.broadcaster.Unregister(subID)

	logger := s.logger.With("sub_id", subID)
	logger.Info("agent session started", "agents", s.broadcaster.Count())

	g, gctx := errgroup.WithContext(ctx)

	// Closing the connection unblocks whichever role is still in I/O.
	stop := context.AfterFunc(gctx, func() {
		_ = conn.Close()
	})
	defer stop()

	g.Go(func() error {
		return s.outbound(gctx, conn, deliveries, logger)
	})
	g.Go(func() error {
		return s.inbound(gctx, conn, logger)
	})

	err := g.Wait()
	_ = conn.Close()

	logger.Info("agent session ended", "reason", err)
	return err
}

// outbound writes every delivered command to the agent in channel order.
func (s *Session) outbound(ctx context.Context, conn Conn, deliveries <-chan command.Command, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-deliveries:
			if !ok {
				return ErrDeliveryClosed
			}
			data, err := command.Encode(c)
			if err != nil {
				logger.Error("encoding command", "command_id", c.ID, "error", err)
				continue
			}
			if err := conn.WriteMessage(data); err != nil {
				return fmt.Errorf("writing to agent: %w", err)
			}
			logger.Debug("command sent to agent", "command_id", c.ID, "status", command.StatusLabel(c.Status))
		}
	}
}

// inbound reads agent messages and records results. Messages that do not
// decode are dropped without ending the session.
func (s *Session) inbound(ctx context.Context, conn Conn, logger *slog.Logger) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading from agent: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c, err := command.Decode(data)
		if err != nil {
			s.metrics.DecodeFailed()
			logger.Debug("discarding undecodable message", "error", err, "bytes", len(data))
			continue
		}

		s.apply(c, logger)
	}
}

// apply records a terminal result and rebroadcasts it so every agent sees the
// outcome. Pending echoes from agents are not new work and are ignored.
func (s *Session) apply(c command.Command, logger *slog.Logger) {
	switch c.Status.(type) {
	case command.Pending:
		logger.Debug("ignoring pending command from agent", "command_id", c.ID)
		return
	case command.Completed, command.Failed:
	default:
		logger.Warn("ignoring command with unknown status", "command_id", c.ID)
		return
	}

	if !s.ledger.Record(c) {
		logger.Debug("duplicate result ignored", "command_id", c.ID)
		return
	}
	s.metrics.Recorded(command.StatusLabel(c.Status))

	n := s.broadcaster.Broadcast(c)
	logger.Info("result recorded",
		"command_id", c.ID,
		"status", command.StatusLabel(c.Status),
		"rebroadcast_to", n)
}
