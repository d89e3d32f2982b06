package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/blend"
	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/resilience"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Inspect or reset the remote-model circuit breaker",
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted breaker state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		breaker, st, err := openBreaker(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return writeJSON(cmd.OutOrStdout(), breaker.Load(ctx))
	},
}

var breakerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Force the breaker to half_open with a fresh window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		breaker, st, err := openBreaker(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, err := breaker.Reset(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("breaker: reset", zap.String("key", breaker.Key()))
		return writeJSON(cmd.OutOrStdout(), state)
	},
}

func init() {
	breakerCmd.AddCommand(breakerStatusCmd, breakerResetCmd)
	rootCmd.AddCommand(breakerCmd)
}

// openBreaker opens the store and the breaker persisted in it. The caller
// closes the store.
func openBreaker(ctx context.Context) (*resilience.Breaker, cache.Store, error) {
	if err := cfg.Validate("classify"); err != nil {
		return nil, nil, err
	}
	st, err := cache.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	b := blend.NewBreaker(st, cfg.Classifier.CacheVersion, resilience.FromBreakerConfig(
		cfg.Breaker.WindowMins, cfg.Breaker.MinSamples, cfg.Breaker.ErrorThreshold,
	))
	return b, st, nil
}
