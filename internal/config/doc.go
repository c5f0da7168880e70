// Package config handles configuration loading for shellcast-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Every field has a default, so an empty file (or no file at all,
// via Default) gives a working gateway on localhost:3030.
//
// # Configuration File
//
// Location, first match wins:
//
//  1. Path from SHELLCAST_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/shellcast/gateway.yaml
//  3. ~/.config/shellcast/gateway.yaml
//
// A path ending in .toml is parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:3030"  # API, agent WebSocket, health, metrics
//	  write_timeout: "10s"         # per-frame write deadline to agents
//	  shutdown_timeout: "10s"
//
//	agents:
//	  buffer_size: 100             # commands queued per agent before drops
//
//	generator:
//	  enabled: false
//	  interval: "3s"
//	  command: "echo hello world"
//
//	tailscale:
//	  enabled: false
//	  hostname: "shellcast"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""                # defaults under the user config dir
//	  ephemeral: false
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// The same keys work in TOML:
//
//	[server]
//	http_addr = "0.0.0.0:3030"
//
//	[generator]
//	enabled = true
//	interval = "10s"
//
// # Duration Parsing
//
// Durations use time.ParseDuration syntax ("500ms", "3s", "1m").
package config
