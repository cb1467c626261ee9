package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/skillswap/internal/app"
	"github.com/Freeeeeet/skillswap/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skillswap",
		Short:         "Skill exchange booking, ledger and notification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, telegram bot and notification sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting skillswap",
				zap.String("environment", cfg.Environment),
				zap.String("storage", cfg.Storage),
				zap.Bool("reopen_slots_on_reject", cfg.ReopenSlotsOnReject),
			)
			return app.Run(cmd.Context(), cfg, logger)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage database schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			switch action {
			case "up":
				return migrator.Up(ctx)
			case "down":
				return migrator.Down(ctx)
			case "version":
				version, err := migrator.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Println(version)
				return nil
			}
			return fmt.Errorf("unknown migrate action %q", action)
		},
	}
	return cmd
}
