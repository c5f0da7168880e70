// ABOUTME: Entry point for shellcast-agent, which runs commands broadcast by a shellcast gateway
// ABOUTME: Connects over WebSocket, executes each Pending command once and reports the outcome

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/2389/shellcast/internal/agent"
	"github.com/2389/shellcast/internal/dedupe"
	"github.com/2389/shellcast/internal/executor"
	"github.com/2389/shellcast/internal/logging"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := NewOptions()

	cmd := &cobra.Command{
		Use:           "shellcast-agent",
		Short:         "Run shell commands broadcast by a shellcast gateway",
		Long:          "shellcast-agent connects to a shellcast gateway, executes every Pending command it receives in a local shell, and reports Completed or Failed back to the gateway. Outcomes reported by other agents are printed as they arrive.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if errs := opts.Validate(); len(errs) > 0 {
				return errors.Join(errs...)
			}
			return run(cmd.Context(), opts)
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, opts *Options) error {
	logger := logging.New(*opts.Log, os.Stderr)

	seen := dedupe.New(opts.DedupeTTL, dedupe.DefaultMaxSize)
	defer seen.Close()

	client := agent.NewClient(
		executor.New(opts.ExecutorOptions()),
		seen,
		opts.ClientOptions(),
		logger,
	)

	logger.Info("starting shellcast-agent",
		"version", version,
		"url", opts.URL,
		"shell", opts.Shell,
		"parallel", opts.Parallelism,
	)

	if opts.Retry {
		return client.RunWithRetry(ctx, opts.RetryInitial, opts.RetryMax)
	}
	if err := client.Run(ctx); err != nil {
		return fmt.Errorf("agent stopped: %w", err)
	}
	return nil
}
