// ABOUTME: Subcommands that talk to a running gateway over its HTTP API
// ABOUTME: health, agents, commands and submit (optionally waiting for an outcome)

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/shellcast/internal/command"
	"github.com/2389/shellcast/internal/config"
)

// waitPollInterval is how often submit --wait re-reads the command.
const waitPollInterval = 500 * time.Millisecond

// apiBaseURL returns the gateway's HTTP base URL. $SHELLCAST_API_URL wins,
// then the configured HTTP address, then the Tailscale hostname.
func apiBaseURL() (string, error) {
	if u := os.Getenv("SHELLCAST_API_URL"); u != "" {
		return strings.TrimRight(u, "/"), nil
	}

	cfg, _, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	return baseURLFor(cfg), nil
}

func baseURLFor(cfg *config.Config) string {
	if cfg.Server.HTTPAddr != "" {
		return "http://" + cfg.Server.HTTPAddr
	}
	return "http://" + cfg.Tailscale.Hostname
}

// get performs a GET against the gateway and returns the status code and body.
func get(ctx context.Context, path string) (int, []byte, error) {
	base, err := apiBaseURL()
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	return do(req)
}

func do(req *http.Request) (int, []byte, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runHealth(ctx context.Context) error {
	code, _, err := get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", code)
	}

	fmt.Println("healthy")
	return nil
}

func runAgents(ctx context.Context) error {
	_, body, err := get(ctx, "/health/ready")
	if err != nil {
		return fmt.Errorf("agents check failed: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func runCommands(ctx context.Context) error {
	code, body, err := get(ctx, "/api/commands")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("listing commands: status %d: %s", code, strings.TrimSpace(string(body)))
	}

	var commands []command.Command
	if err := json.Unmarshal(body, &commands); err != nil {
		return fmt.Errorf("decoding ledger: %w", err)
	}

	if len(commands) == 0 {
		fmt.Println("no commands")
		return nil
	}
	for _, c := range commands {
		printCommand(c)
	}
	return nil
}

func runSubmit(ctx context.Context, args []string) error {
	wait := false
	var parts []string
	for i, arg := range args {
		if arg == "--" {
			parts = append(parts, args[i+1:]...)
			break
		}
		if arg == "--wait" || arg == "-w" {
			wait = true
			continue
		}
		parts = append(parts, arg)
	}

	cmdLine := strings.TrimSpace(strings.Join(parts, " "))
	if cmdLine == "" {
		return fmt.Errorf("usage: shellcast-gateway submit [--wait] <cmd>")
	}

	base, err := apiBaseURL()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"cmd": cmdLine})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/commands", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	code, body, err := do(req)
	if err != nil {
		return err
	}
	if code != http.StatusCreated {
		return fmt.Errorf("submit rejected: status %d: %s", code, strings.TrimSpace(string(body)))
	}

	var c command.Command
	if err := json.Unmarshal(body, &c); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	fmt.Println(c.ID)

	if !wait {
		return nil
	}
	final, err := waitForOutcome(ctx, c.ID)
	if err != nil {
		return err
	}
	printCommand(final)
	if _, failed := final.Status.(command.Failed); failed {
		return fmt.Errorf("command %s failed", final.ID)
	}
	return nil
}

// waitForOutcome polls the command until an agent reports a terminal status.
func waitForOutcome(ctx context.Context, id string) (command.Command, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		code, body, err := get(ctx, "/api/commands/"+id)
		if err != nil {
			return command.Command{}, err
		}
		if code != http.StatusOK {
			return command.Command{}, fmt.Errorf("reading command %s: status %d", id, code)
		}

		var c command.Command
		if err := json.Unmarshal(body, &c); err != nil {
			return command.Command{}, fmt.Errorf("decoding command: %w", err)
		}
		if command.IsTerminal(c.Status) {
			return c, nil
		}

		select {
		case <-ctx.Done():
			return command.Command{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printCommand(c command.Command) {
	gray := color.New(color.FgHiBlack)
	gray.Printf("%s ", c.ID)

	switch s := c.Status.(type) {
	case command.Completed:
		color.New(color.FgGreen).Print("✓ ")
		fmt.Println(c.Cmd)
		fmt.Print(indent(s.Output))
	case command.Failed:
		color.New(color.FgRed).Print("✗ ")
		fmt.Println(c.Cmd)
		fmt.Print(indent(s.Reason))
	default:
		color.New(color.FgYellow).Print("… ")
		fmt.Println(c.Cmd)
	}
}

func indent(s string) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	return "    " + strings.ReplaceAll(s, "\n", "\n    ") + "\n"
}
