// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and validation

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "0.0.0.0:3030"
  write_timeout: "5s"
  shutdown_timeout: "30s"

agents:
  buffer_size: 16

generator:
  enabled: true
  interval: "250ms"
  command: "uptime"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:3030" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:3030")
	}
	if cfg.Server.WriteTimeout != 5*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, 5*time.Second)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, 30*time.Second)
	}
	if cfg.Agents.BufferSize != 16 {
		t.Errorf("Agents.BufferSize = %d, want 16", cfg.Agents.BufferSize)
	}
	if !cfg.Generator.Enabled {
		t.Error("Generator.Enabled = false, want true")
	}
	if cfg.Generator.Interval != 250*time.Millisecond {
		t.Errorf("Generator.Interval = %v, want 250ms", cfg.Generator.Interval)
	}
	if cfg.Generator.Command != "uptime" {
		t.Errorf("Generator.Command = %q, want %q", cfg.Generator.Command, "uptime")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/prom" {
		t.Errorf("Metrics = %+v, want enabled at /prom", cfg.Metrics)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "gateway.toml", `
[server]
http_addr = "127.0.0.1:4040"
write_timeout = "2s"

[agents]
buffer_size = 8

[generator]
enabled = true
interval = "1m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:4040" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:4040")
	}
	if cfg.Server.WriteTimeout != 2*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 2s", cfg.Server.WriteTimeout)
	}
	if cfg.Agents.BufferSize != 8 {
		t.Errorf("Agents.BufferSize = %d, want 8", cfg.Agents.BufferSize)
	}
	if cfg.Generator.Interval != time.Minute {
		t.Errorf("Generator.Interval = %v, want 1m", cfg.Generator.Interval)
	}
	if cfg.Generator.Command != DefaultGeneratorCommand {
		t.Errorf("Generator.Command = %q, want default %q", cfg.Generator.Command, DefaultGeneratorCommand)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Server.HTTPAddr != want.Server.HTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, want.Server.HTTPAddr)
	}
	if cfg.Server.HTTPAddr != "localhost:3030" {
		t.Errorf("default http_addr = %q, want localhost:3030", cfg.Server.HTTPAddr)
	}
	if cfg.Agents.BufferSize != 100 {
		t.Errorf("default buffer_size = %d, want 100", cfg.Agents.BufferSize)
	}
	if cfg.Generator.Enabled {
		t.Error("generator should be disabled by default")
	}
	if cfg.Generator.Interval != 3*time.Second {
		t.Errorf("default generator interval = %v, want 3s", cfg.Generator.Interval)
	}
	if cfg.Generator.Command != "echo hello world" {
		t.Errorf("default generator command = %q", cfg.Generator.Command)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default metrics path = %q", cfg.Metrics.Path)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_SHELLCAST_ADDR", "10.0.0.5:3030")
	t.Setenv("TEST_SHELLCAST_CMD", "hostname")

	path := writeConfig(t, "gateway.yaml", `
server:
  http_addr: "${TEST_SHELLCAST_ADDR}"
generator:
  command: "${TEST_SHELLCAST_CMD}"
tailscale:
  auth_key: "${TEST_SHELLCAST_UNSET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "10.0.0.5:3030" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "10.0.0.5:3030")
	}
	if cfg.Generator.Command != "hostname" {
		t.Errorf("Generator.Command = %q, want %q", cfg.Generator.Command, "hostname")
	}
	if cfg.Tailscale.AuthKey != "" {
		t.Errorf("unset variable should expand to empty, got %q", cfg.Tailscale.AuthKey)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "invalid duration",
			file:    "gateway.yaml",
			content: "server:\n  write_timeout: \"soon\"\n",
			wantErr: "write_timeout",
		},
		{
			name:    "invalid generator interval",
			file:    "gateway.yaml",
			content: "generator:\n  interval: \"often\"\n",
			wantErr: "interval",
		},
		{
			name:    "negative interval with generator on",
			file:    "gateway.yaml",
			content: "generator:\n  enabled: true\n  interval: \"-1s\"\n",
			wantErr: "generator.interval",
		},
		{
			name:    "negative buffer",
			file:    "gateway.yaml",
			content: "agents:\n  buffer_size: -3\n",
			wantErr: "buffer_size",
		},
		{
			name:    "tailscale without hostname",
			file:    "gateway.yaml",
			content: "tailscale:\n  enabled: true\n",
			wantErr: "tailscale.hostname",
		},
		{
			name:    "bad log level",
			file:    "gateway.yaml",
			content: "logging:\n  level: \"loud\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			file:    "gateway.yaml",
			content: "logging:\n  format: \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "metrics path without slash",
			file:    "gateway.yaml",
			content: "metrics:\n  enabled: true\n  path: \"metrics\"\n",
			wantErr: "metrics.path",
		},
		{
			name:    "malformed yaml",
			file:    "gateway.yaml",
			content: "server: [\n",
			wantErr: "parsing config file",
		},
		{
			name:    "malformed toml",
			file:    "gateway.toml",
			content: "[server\n",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoad_TailscaleWithoutHTTPAddr(t *testing.T) {
	path := writeConfig(t, "gateway.yaml", `
tailscale:
  enabled: true
  hostname: "shellcast"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "" {
		t.Errorf("HTTPAddr should stay empty when tailscale serves, got %q", cfg.Server.HTTPAddr)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("SHELLCAST_CONFIG", "/etc/shellcast/custom.toml")
	if got := ResolvePath(); got != "/etc/shellcast/custom.toml" {
		t.Errorf("ResolvePath() = %q, want env override", got)
	}

	t.Setenv("SHELLCAST_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ResolvePath(); got != filepath.Join("/tmp/xdg", "shellcast", "gateway.yaml") {
		t.Errorf("ResolvePath() = %q, want XDG path", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_SHELLCAST_A", "alpha")

	got := expandEnvVars("a=${TEST_SHELLCAST_A} b=${TEST_SHELLCAST_MISSING} c=$PLAIN")
	want := "a=alpha b= c=$PLAIN"
	if got != want {
		t.Errorf("expandEnvVars() = %q, want %q", got, want)
	}
}
