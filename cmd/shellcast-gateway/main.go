// ABOUTME: Entry point for shellcast-gateway, the coordinator that fans shell commands out to agents
// ABOUTME: Dispatches serve, init, health, agents, commands and submit subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	_ "go.uber.org/automaxprocs"

	"github.com/2389/shellcast/internal/config"
	"github.com/2389/shellcast/internal/gateway"
	"github.com/2389/shellcast/internal/logging"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _          _ _                _
 ___| |__   ___| | | ___ __ _ ___| |_
/ __| '_ \ / _ \ | |/ __/ _' / __| __|
\__ \ | | |  __/ | | (_| (_| \__ \ |_
|___/_| |_|\___|_|_|\___\__,_|___/\__|
`

func usage() {
	fmt.Println("Usage: shellcast-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the gateway server")
	fmt.Println("  init                     Create a new config file interactively")
	fmt.Println("  health                   Check gateway health")
	fmt.Println("  agents                   Report connected agents")
	fmt.Println("  commands                 Print the command ledger")
	fmt.Println("  submit [--wait] <cmd>    Submit a shell command to every agent")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "agents":
		err = runAgents(ctx)
	case "commands":
		err = runCommands(ctx)
	case "submit":
		err = runSubmit(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the resolved config file. A missing file yields the
// defaults so the gateway runs out of the box; found reports which happened.
func loadConfig() (cfg *config.Config, path string, found bool, err error) {
	path = config.ResolvePath()
	cfg, err = config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), path, false, nil
	}
	if err != nil {
		return nil, path, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, true, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, found, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s", configPath)
	if !found {
		yellow.Print(" (not found, using defaults)")
	}
	fmt.Println()
	if cfg.Server.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
		green.Print("    ▶ ")
		fmt.Printf("Agents:    ws://%s%s\n", cfg.Server.HTTPAddr, gateway.AgentPath)
	}
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Generator.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Generator: %q every %s\n", cfg.Generator.Command, cfg.Generator.Interval)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting shellcast-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"tailscale", cfg.Tailscale.Enabled,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}
