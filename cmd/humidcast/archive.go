package main

import (
	"context"
	"errors"
	"humidcast/internal/config"
	"humidcast/internal/database"
	"humidcast/internal/logger"
	"humidcast/internal/stream"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newArchiveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Copy published snapshots from the Redis stream into MySQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled || !cfg.Database.Enabled {
				return errors.New("archive needs both redis and database enabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return archive(ctx, cfg)
		},
	}
}

func archive(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Logging)

	client, err := stream.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	db, err := database.NewDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	consumer := stream.NewConsumer(client, cfg.Redis.Stream, cfg.Redis.Group, cfg.Redis.Consumer, log)
	if err := consumer.Run(ctx, db.WriteSnapshot); err != nil {
		return err
	}
	log.Info("archive stopped")
	return nil
}
