package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/config"
	"github.com/transitlab/transitmart/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "transitmart",
	Short: "Transit analytics transformation engine",
	Long:  "Loads raw transit feeds, rebuilds dimensions, appends incremental facts, derives monthly scorecards, and tracks data-health SLAs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens the configured warehouse backend.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
