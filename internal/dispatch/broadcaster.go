// ABOUTME: Registry of connected agents' delivery channels and best-effort fan-out to them
// ABOUTME: Each agent gets its own bounded buffer so one slow agent never stalls the rest

package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/shellcast/internal/command"
	"github.com/2389/shellcast/internal/metrics"
)

// DefaultBufferSize is the per-agent delivery channel capacity.
const DefaultBufferSize = 100

// Broadcaster tracks one delivery channel per connected agent and publishes
// commands to all of them. Agents are anonymous: a subscription ID exists only
// so a session can remove its own channel when it ends.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan command.Command // subID -> ch
	closed      bool

	bufferSize int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets the per-agent channel capacity. Values below 1 are ignored.
func WithBufferSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithMetrics records deliveries and connected agents on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger, opts ...Option) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		subscribers: make(map[string]chan command.Command),
		bufferSize:  DefaultBufferSize,
		logger:      logger.With("component", "broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a delivery channel for a newly connected agent and returns it
// with its subscription ID. The channel only receives commands broadcast after
// this call. It is removed automatically when ctx is cancelled.
//
// Each registration starts a goroutine that waits for ctx to end, so ctx must
// eventually be cancelled. Unregister closes the channel early but does not
// stop that goroutine.
func (b *Broadcaster) Register(ctx context.Context) (<-chan command.Command, string) {
	subID := uuid.New().String()
	ch := make(chan command.Command, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	total := len(b.subscribers)
	b.mu.Unlock()

	b.metrics.AgentConnected()
	b.logger.Debug("agent registered", "sub_id", subID, "total_agents", total)

	go func() {
		<-ctx.Done()
		b.Unregister(subID)
	}()

	return ch, subID
}

// Broadcast delivers a copy of c to every registered agent without blocking.
// A full channel drops that one delivery; the rest still receive c.
// Returns the number of agents the command was queued for.
func (b *Broadcaster) Broadcast(c command.Command) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Sends are non-blocking, so holding the read lock here is brief. It also
	// keeps Unregister from closing a channel mid-send.
	delivered := 0
	for subID, ch := range b.subscribers {
		select {
		case ch <- c:
			delivered++
			b.metrics.Delivered()
		default:
			b.metrics.Dropped()
			b.logger.Warn("agent channel full, dropping command",
				"sub_id", subID,
				"command_id", c.ID,
				"status", c.Status.String())
		}
	}
	return delivered
}

// Unregister removes a delivery channel and closes it. Safe to call more than once.
func (b *Broadcaster) Unregister(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.metrics.AgentDisconnected()
	b.logger.Debug("agent unregistered", "sub_id", subID, "total_agents", len(b.subscribers))
}

// Count returns the number of registered agents.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every delivery channel. Later Register calls get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
		b.metrics.AgentDisconnected()
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
