package main

import (
	"context"
	"humidcast/internal/config"
	"humidcast/internal/logger"
	"humidcast/internal/server"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh loop and the HTTP facade",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.RequireUpstream(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

// serve runs the scheduler and the HTTP server side by side. They share only
// the prediction cache; either one failing stops both.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Logging)
	log.Info("starting humidcast",
		"version", version,
		"upstream", cfg.Upstream.BaseURL,
		"addr", cfg.Server.Addr)

	a := newApp(ctx, cfg, log)
	defer a.Close()

	srv := server.NewServer(cfg.Server, a.cache, a.refresher, a.history(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.refresher.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("humidcast stopped with error", "error", err)
		return err
	}
	log.Info("humidcast stopped")
	return nil
}
