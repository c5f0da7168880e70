// ABOUTME: Command-line options for shellcast-agent
// ABOUTME: Binds pflag flags, applies environment fallbacks and validates values

package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/2389/shellcast/internal/agent"
	"github.com/2389/shellcast/internal/dedupe"
	"github.com/2389/shellcast/internal/executor"
	"github.com/2389/shellcast/internal/logging"
)

// urlEnv overrides the default gateway URL when --url is not given.
const urlEnv = "SHELLCAST_GATEWAY_URL"

// Options holds everything the agent reads from its command line.
type Options struct {
	URL          string
	Shell        string
	Dir          string
	Env          []string
	Parallelism  int
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	DedupeTTL    time.Duration
	Quiet        bool

	Retry        bool
	RetryInitial time.Duration
	RetryMax     time.Duration

	Log *logging.Options
}

// NewOptions returns Options populated with defaults and environment fallbacks.
func NewOptions() *Options {
	u := agent.DefaultURL
	if env := os.Getenv(urlEnv); env != "" {
		u = env
	}

	return &Options{
		URL:          u,
		Shell:        executor.DefaultShell,
		Parallelism:  agent.DefaultParallelism,
		WriteTimeout: agent.DefaultWriteTimeout,
		DialTimeout:  agent.DefaultDialTimeout,
		DedupeTTL:    dedupe.DefaultTTL,
		Retry:        true,
		RetryInitial: time.Second,
		RetryMax:     30 * time.Second,
		Log:          logging.NewOptions(),
	}
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.URL, "url", "u", o.URL, "Gateway WebSocket URL (env "+urlEnv+").")
	fs.StringVar(&o.Shell, "shell", o.Shell, "Shell used to run commands as '<shell> -c <cmd>'.")
	fs.StringVar(&o.Dir, "dir", o.Dir, "Working directory for commands (default: the agent's own).")
	fs.StringArrayVarP(&o.Env, "env", "e", o.Env, "Extra KEY=VALUE for the command environment; repeatable.")
	fs.IntVarP(&o.Parallelism, "parallel", "p", o.Parallelism, "Commands executed at once.")
	fs.DurationVar(&o.WriteTimeout, "write-timeout", o.WriteTimeout, "Deadline for each frame written to the gateway.")
	fs.DurationVar(&o.DialTimeout, "dial-timeout", o.DialTimeout, "WebSocket handshake timeout.")
	fs.DurationVar(&o.DedupeTTL, "dedupe-ttl", o.DedupeTTL, "How long an executed command ID is remembered.")
	fs.BoolVarP(&o.Quiet, "quiet", "q", o.Quiet, "Do not print observed command outcomes.")

	fs.BoolVar(&o.Retry, "retry", o.Retry, "Reconnect after the connection drops.")
	fs.DurationVar(&o.RetryInitial, "retry-initial", o.RetryInitial, "First reconnect delay.")
	fs.DurationVar(&o.RetryMax, "retry-max", o.RetryMax, "Maximum reconnect delay.")

	o.Log.AddFlags(fs)
}

// Validate checks the options and returns every problem found.
func (o *Options) Validate() []error {
	var errs []error

	u, err := url.Parse(o.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("--url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("--url must use ws or wss, got %q", o.URL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("--url %q has no host", o.URL))
	}

	if strings.TrimSpace(o.Shell) == "" {
		errs = append(errs, fmt.Errorf("--shell must not be empty"))
	}
	for _, kv := range o.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Errorf("--env %q is not KEY=VALUE", kv))
		}
	}
	if o.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("--parallel must be at least 1, got %d", o.Parallelism))
	}
	if o.DedupeTTL <= 0 {
		errs = append(errs, fmt.Errorf("--dedupe-ttl must be positive"))
	}
	if o.Retry && (o.RetryInitial <= 0 || o.RetryMax < o.RetryInitial) {
		errs = append(errs, fmt.Errorf("--retry-initial must be positive and not exceed --retry-max"))
	}
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ExecutorOptions returns the executor settings.
func (o *Options) ExecutorOptions() executor.Options {
	return executor.Options{Shell: o.Shell, Dir: o.Dir, Env: o.Env}
}

// ClientOptions returns the agent client settings.
func (o *Options) ClientOptions() agent.Options {
	opts := agent.Options{
		URL:          o.URL,
		Parallelism:  o.Parallelism,
		WriteTimeout: o.WriteTimeout,
		DialTimeout:  o.DialTimeout,
	}
	if !o.Quiet {
		opts.Output = os.Stdout
	}
	return opts
}
