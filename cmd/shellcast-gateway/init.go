// ABOUTME: Interactive config file creation for shellcast-gateway init
// ABOUTME: Prompts for each section and writes a commented YAML file

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/shellcast/internal/config"
)

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("shellcast-gateway configuration setup")
	fmt.Println("=====================================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.ResolvePath())

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	answers := initAnswers{}

	fmt.Println("\n--- Server Configuration ---")
	answers.httpAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Agent Delivery ---")
	answers.bufferSize = prompt(reader, "Commands queued per agent", fmt.Sprint(config.DefaultBufferSize))

	fmt.Println("\n--- Command Generator ---")
	answers.generator = yes(prompt(reader, "Broadcast a periodic test command?", "no"))
	if answers.generator {
		answers.genCommand = prompt(reader, "Command", config.DefaultGeneratorCommand)
		answers.genInterval = prompt(reader, "Interval", config.DefaultGeneratorInterval.String())
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	answers.tailscale = yes(prompt(reader, "Enable Tailscale?", "no"))
	if answers.tailscale {
		answers.tsHostname = prompt(reader, "Tailscale hostname", "shellcast")
		answers.tsAuthKey = prompt(reader, authKeyQuestion(), "")
		answers.tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	answers.logLevel = prompt(reader, "Log level (debug/info/warn/error)", config.DefaultLogLevel)
	answers.logFormat = prompt(reader, "Log format (text/json)", config.DefaultLogFormat)

	fmt.Println("\n--- Metrics ---")
	answers.metrics = yes(prompt(reader, "Expose Prometheus metrics?", "no"))

	content := answers.render()
	if _, err := config.Parse([]byte(content), config.FormatYAML); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may carry a Tailscale auth key.
	if err := os.WriteFile(outputFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  shellcast-gateway serve\n")

	return nil
}

type initAnswers struct {
	httpAddr    string
	bufferSize  string
	generator   bool
	genCommand  string
	genInterval string
	tailscale   bool
	tsHostname  string
	tsAuthKey   string
	tsEphemeral bool
	logLevel    string
	logFormat   string
	metrics     bool
}

func (a initAnswers) render() string {
	var cfg strings.Builder
	cfg.WriteString("# shellcast-gateway configuration\n")
	cfg.WriteString("# Generated by shellcast-gateway init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n", a.httpAddr)
	fmt.Fprintf(&cfg, "  write_timeout: %q\n", config.DefaultWriteTimeout.String())
	fmt.Fprintf(&cfg, "  shutdown_timeout: %q\n", config.DefaultShutdownTimeout.String())
	cfg.WriteString("\n")

	cfg.WriteString("agents:\n")
	fmt.Fprintf(&cfg, "  buffer_size: %s\n", a.bufferSize)
	cfg.WriteString("\n")

	cfg.WriteString("generator:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.generator)
	if a.generator {
		fmt.Fprintf(&cfg, "  command: %q\n", a.genCommand)
		fmt.Fprintf(&cfg, "  interval: %q\n", a.genInterval)
	}
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.tailscale)
	if a.tailscale {
		fmt.Fprintf(&cfg, "  hostname: %q\n", a.tsHostname)
		if a.tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", a.tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n", a.tsEphemeral)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", a.logFormat)
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.metrics)
	fmt.Fprintf(&cfg, "  path: %q\n", config.DefaultMetricsPath)

	return cfg.String()
}

// authKeyQuestion tells the user where serve looks for the key when the
// config file does not carry one.
func authKeyQuestion() string {
	return fmt.Sprintf("Tailscale auth key (empty: serve reads %s)", strings.Join(config.AuthKeyEnv, " or "))
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
