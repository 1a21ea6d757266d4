package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mealsync/internal/app"
	"mealsync/internal/config"
	"mealsync/internal/logging"
	"mealsync/internal/notify"
)

var (
	logLevel string

	logger      *zap.Logger
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mealsync",
	Short: "Meal planning that works offline and syncs when it can",
	Long: `mealsync keeps recipes, a weekly meal plan, a shopping list and household
members in sync with the meal-planner backend.

Without an account everything stays on this device (guest mode). Signed in,
changes go to the backend and are queued locally whenever it cannot be
reached; "mealsync sync" or "mealsync watch" replays the queue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		application, err = app.NewApp(cfg, logger, notify.NewWriter(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		mode, err := application.Init(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("session restored", zap.Stringer("mode", mode))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			if err := application.Close(); err != nil {
				logger.Warn("failed to close database", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override MEALSYNC_LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		loginCmd, registerCmd, logoutCmd, guestCmd, whoamiCmd,
		shoppingCmd, recipesCmd, planCmd, peopleCmd,
		syncCmd, watchCmd, statusCmd, metricsCleanupCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
