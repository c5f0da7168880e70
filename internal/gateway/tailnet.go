// ABOUTME: Optional Tailscale listener: the gateway joins a tailnet as its own tsnet node
// ABOUTME: Agents then reach it at ws://<hostname>/ws without exposing a host port

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/shellcast/internal/config"
)

type tailnet struct {
	cfg    config.TailscaleConfig
	server *tsnet.Server
	logger *slog.Logger
}

func newTailnet(cfg config.TailscaleConfig, logger *slog.Logger) *tailnet {
	return &tailnet{cfg: cfg, logger: logger.With("hostname", cfg.Hostname)}
}

// stateDir is where tsnet keeps node keys between runs.
func (t *tailnet) stateDir() (string, error) {
	if t.cfg.StateDir != "" {
		return t.cfg.StateDir, nil
	}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "shellcast", "tailscale"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no home directory for tailscale state, set tailscale.state_dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "shellcast", "tailscale"), nil
}

func (t *tailnet) authKey() (string, error) {
	if t.cfg.AuthKey != "" {
		return t.cfg.AuthKey, nil
	}
	for _, name := range config.AuthKeyEnv {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("tailscale needs an auth key: set tailscale.auth_key or one of %s",
		strings.Join(config.AuthKeyEnv, ", "))
}

// listen brings the node up and listens on port 80 of its tailnet address.
func (t *tailnet) listen(ctx context.Context) (net.Listener, error) {
	dir, err := t.stateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("tailscale state dir: %w", err)
	}
	key, err := t.authKey()
	if err != nil {
		return nil, err
	}

	t.server = &tsnet.Server{
		Hostname:  t.cfg.Hostname,
		Dir:       dir,
		AuthKey:   key,
		Ephemeral: t.cfg.Ephemeral,
	}

	t.logger.Info("joining tailnet", "state_dir", dir, "ephemeral", t.cfg.Ephemeral)
	status, err := t.server.Up(ctx)
	if err != nil {
		t.server.Close()
		return nil, fmt.Errorf("tailscale up: %w", err)
	}
	t.logStatus(status)

	ln, err := t.server.Listen("tcp", ":80")
	if err != nil {
		t.server.Close()
		return nil, fmt.Errorf("tailscale listen :80: %w", err)
	}
	return ln, nil
}

func (t *tailnet) logStatus(status *ipnstate.Status) {
	var attrs []any
	if len(status.TailscaleIPs) > 0 {
		attrs = append(attrs, "ip", status.TailscaleIPs[0].String())
	} else {
		t.logger.Warn("tailnet node has no addresses yet")
	}
	if status.Self != nil && status.Self.DNSName != "" {
		attrs = append(attrs, "dns_name", status.Self.DNSName)
	}
	t.logger.Info("tailnet node up", attrs...)
}

func (t *tailnet) close() error {
	if t.server == nil {
		return nil
	}
	return t.server.Close()
}
