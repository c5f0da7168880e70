// ABOUTME: Agent client: connects to the gateway, executes Pending commands, reports results.
// ABOUTME: Terminal outcomes rebroadcast by the gateway are shown for display and audit only.

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/2389/shellcast/internal/command"
	"github.com/2389/shellcast/internal/dedupe"
)

// Defaults for a Client.
const (
	DefaultURL          = "ws://localhost:3030/ws"
	DefaultParallelism  = 4
	DefaultWriteTimeout = 10 * time.Second
	DefaultDialTimeout  = 10 * time.Second
)

// Executor runs a Pending command and returns it carrying a terminal status.
// ok is false when the command was not runnable.
type Executor interface {
	Execute(ctx context.Context, c command.Command) (result command.Command, ok bool)
}

// Options configures a Client.
type Options struct {
	URL          string
	Parallelism  int           // commands executed at once
	WriteTimeout time.Duration // per-frame write deadline
	DialTimeout  time.Duration
	Header       http.Header   // extra handshake headers
	Output       io.Writer     // where observed outcomes are printed; nil disables
	// MaxMessageSize bounds an encoded result; longer output is truncated.
	// Zero means command.MaxMessageSize, the gateway's limit.
	MaxMessageSize int
}

// Client is a single agent process's connection to the gateway.
type Client struct {
	url          string
	parallelism  int
	writeTimeout time.Duration
	dialer       *websocket.Dialer
	header       http.Header
	out          io.Writer
	maxMessage   int

	exec     Executor
	seen     *dedupe.Cache
	ownsSeen bool
	logger   *slog.Logger
}

// NewClient creates a Client. seen tracks command IDs already executed and
// stays owned by the caller. With a nil seen the client creates a private
// cache, which Close releases.
func NewClient(exec Executor, seen *dedupe.Cache, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	ownsSeen := seen == nil
	if ownsSeen {
		seen = dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxSize)
	}
	maxMessage := opts.MaxMessageSize
	if maxMessage <= 0 {
		maxMessage = command.MaxMessageSize
	}
	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return &Client{
		url:          url,
		parallelism:  parallelism,
		writeTimeout: writeTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
		header:     opts.Header,
		out:        opts.Output,
		maxMessage: maxMessage,
		exec:       exec,
		seen:       seen,
		ownsSeen:   ownsSeen,
		logger:     logger.With("component", "agent"),
	}
}

// Close releases the private dedupe cache, if NewClient created one. Call it
// after the last Run.
func (c *Client) Close() {
	if c.ownsSeen {
		c.seen.Close()
	}
}

// Run connects to the gateway and serves commands until the gateway closes
// the connection or ctx is cancelled. Both are a clean exit and return nil.
func (c *Client) Run(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dialing gateway %s: %w", c.url, err)
	}
	conn := newConnection(ws, c.writeTimeout, c.logger)
	c.logger.Info("connected to gateway", "url", c.url, "parallelism", c.parallelism)

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() {
		_ = conn.Close()
	})
	defer stop()

	g.Go(func() error {
		return conn.writeLoop(gctx)
	})
	// Executions outlive neither the connection nor ctx: gctx cancellation kills them.
	var workers errgroup.Group
	workers.SetLimit(c.parallelism)
	g.Go(func() error {
		return c.readLoop(gctx, conn, &workers)
	})

	err = g.Wait()
	_ = conn.Close()
	_ = workers.Wait()

	if ctx.Err() != nil || isCleanClose(err) {
		c.logger.Info("disconnected from gateway", "remembered_ids", c.seen.Len())
		return nil
	}
	return err
}

// readLoop dispatches each received command. Executions run in a bounded
// pool; when it is full, reading pauses until a slot frees up.
func (c *Client) readLoop(ctx context.Context, conn *Connection, workers *errgroup.Group) error {
	for {
		cmd, err := conn.Receive()
		if errors.Is(err, command.ErrInvalidCommand) {
			c.logger.Debug("discarding undecodable message", "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading from gateway: %w", err)
		}

		switch cmd.Status.(type) {
		case command.Pending:
			if !c.seen.MarkIfNew(cmd.ID) {
				c.logger.Debug("already executed, skipping", "command_id", cmd.ID)
				continue
			}
			workers.Go(func() error {
				c.execute(ctx, conn, cmd)
				return nil
			})
		case command.Completed, command.Failed:
			c.observe(cmd)
		default:
			c.logger.Warn("ignoring command with unknown status", "command_id", cmd.ID)
		}
	}
}

func (c *Client) execute(ctx context.Context, conn *Connection, cmd command.Command) {
	c.logger.Info("executing command", "command_id", cmd.ID, "cmd", cmd.Cmd)
	start := time.Now()

	result, ok := c.exec.Execute(ctx, cmd)
	if !ok {
		return
	}
	c.logger.Debug("command finished",
		"command_id", cmd.ID,
		"status", command.StatusLabel(result.Status),
		"duration", time.Since(start))

	result, cut, err := command.Fit(result, c.maxMessage)
	switch {
	case err != nil:
		result = cmd.WithStatus(command.Failed{Reason: err.Error()})
	case cut:
		c.logger.Warn("result truncated to fit message limit", "command_id", cmd.ID, "limit", c.maxMessage)
	}

	if err := conn.Send(ctx, result); err != nil {
		// Unreported, so a later delivery of the same ID may run it again.
		c.seen.Forget(cmd.ID)
		c.logger.Warn("failed to report result", "command_id", cmd.ID, "error", err)
	}
}

// observe prints a terminal outcome the gateway recorded, whichever agent produced it.
func (c *Client) observe(cmd command.Command) {
	c.logger.Debug("outcome observed", "command_id", cmd.ID, "status", command.StatusLabel(cmd.Status))
	if c.out == nil {
		return
	}

	switch s := cmd.Status.(type) {
	case command.Completed:
		green := color.New(color.FgGreen, color.Bold)
		green.Fprintf(c.out, "✓ %s ", cmd.ID)
		fmt.Fprintf(c.out, "%s\n%s", cmd.Cmd, ensureNewline(s.Output))
	case command.Failed:
		red := color.New(color.FgRed, color.Bold)
		red.Fprintf(c.out, "✗ %s ", cmd.ID)
		fmt.Fprintf(c.out, "%s\n%s", cmd.Cmd, ensureNewline(s.Reason))
	}
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

func isCleanClose(err error) bool {
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}

// RunWithRetry calls Run until ctx is cancelled, waiting between attempts with
// exponential backoff capped at maxDelay. A session that lasted longer than
// maxDelay resets the backoff.
func (c *Client) RunWithRetry(ctx context.Context, initialDelay, maxDelay time.Duration) error {
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	delay := initialDelay
	for {
		started := time.Now()
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxDelay {
			delay = initialDelay
		}
		if err != nil {
			c.logger.Warn("connection lost, retrying", "error", err, "retry_in", delay)
		} else {
			c.logger.Info("gateway closed connection, reconnecting", "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxDelay)
	}
}
