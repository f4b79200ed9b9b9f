package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/onetoone/internal/seed"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultBaseURL = "http://localhost:9080"
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the seed command.
func newRootCmd() *cobra.Command {
	cfg := &seed.Config{}
	var logFormat string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a roster and random meetings into a running service",
		Long: `Load demo data into a running meeting service through its HTTP API.

This command:
1. Logs in as treasurer
2. Writes the roster and event info from the plan file
3. Schedules random valid meetings using the eligibility endpoint
4. Reads the meetings back and checks the round invariants`,
		Example: `  seed --file roster.yaml
  seed --file roster.yaml --meetings 10 --url http://localhost:8080`,
		SilenceUsage: true,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			if cfg.Password == "" {
				cfg.Password = os.Getenv("ONETOONE_TREASURER_PASSWORD")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the service")
	flags.StringVarP(&cfg.PlanFile, "file", "f", "", "YAML plan with participants and event info")
	flags.StringVar(&cfg.Password, "password", "", "Treasurer password (default $ONETOONE_TREASURER_PASSWORD)")
	flags.IntVarP(&cfg.Meetings, "meetings", "n", 0, "Meetings to create (default from the plan)")
	flags.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flags.Uint64Var(&cfg.Retries, "retries", defaultRetries, "Retries on backpressure")
	flags.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed for partner selection")
	flags.StringVar(&logFormat, "log-format", "text", "Log format: text, json or tint")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(ctx context.Context, cfg *seed.Config) error {
	plan, err := seed.LoadPlan(cfg.PlanFile)
	if err != nil {
		return err
	}
	log := logger.Get().Named("seed")
	stats, err := seed.NewRunner(cfg, log).Run(ctx, plan)
	if err != nil {
		log.Error(ctx, "seed run failed", logger.Error(err))
		return err
	}
	fmt.Fprintf(os.Stdout, "seeded %d participants and %d meetings in %s\n",
		stats.Participants, stats.Created, stats.Duration.Round(time.Millisecond))
	return nil
}
