package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached classifications",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop the cached classification and remote answer for a domain",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		domain, _ := cmd.Flags().GetString("domain")
		if domain == "" {
			return eris.New("cache: --domain is required")
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Classifier.Invalidate(ctx, domain); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", env.Classifier.Key(domain))
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		st, err := cache.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := purge(ctx, st)
		if err != nil {
			return err
		}
		zap.L().Info("cache: purge complete", zap.String("driver", cfg.Store.Driver), zap.Int("deleted", n))
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
		return nil
	},
}

func init() {
	cacheInvalidateCmd.Flags().String("domain", "", "domain whose cached results to drop")
	cacheCmd.AddCommand(cacheInvalidateCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// purge sweeps expired entries from stores that keep them around. Stores with
// native expiry report zero.
func purge(ctx context.Context, st cache.Store) (int, error) {
	p, ok := st.(cache.Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge")
	}
	return n, nil
}
