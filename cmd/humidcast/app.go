package main

import (
	"context"
	"humidcast/internal/api"
	"humidcast/internal/cache"
	"humidcast/internal/config"
	"humidcast/internal/database"
	"humidcast/internal/predictor"
	"humidcast/internal/scheduler"
	"humidcast/internal/server"
	"humidcast/internal/stream"
	"log/slog"
	"net/http"
)

// app is the wired set of components both subcommands run on
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     *cache.PredictionCache
	refresher *scheduler.Refresher
	db        *database.DB
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) *app {
	a := &app{cfg: cfg, logger: logger, cache: cache.New()}

	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	session := api.NewSession(cfg.Upstream.BaseURL, cfg.Upstream.Username, cfg.Upstream.Password, httpClient, logger)
	client := api.NewClient(cfg.Upstream.BaseURL, httpClient, session)

	a.refresher = scheduler.New(scheduler.Deps{
		Sessions: session,
		Catalog:  client,
		History:  client,
		Forecaster: predictor.New(predictor.Options{
			TestRatio:   cfg.Model.TestRatio,
			MinRows:     cfg.Model.MinRows,
			Seed:        cfg.Model.Seed,
			RidgeLambda: cfg.Model.RidgeLambda,
		}),
		Cache:  a.cache,
		Sinks:  a.openSinks(ctx),
		Logger: logger,
	}, scheduler.Options{
		WindowDays: cfg.Refresh.WindowDays,
		Interval:   cfg.Refresh.Interval(),
		Workers:    cfg.Refresh.Workers,
		RunOnStart: cfg.Refresh.RunOnStart,
	})
	return a
}

// openSinks connects the optional snapshot sinks. A sink that cannot be
// reached is left out; forecasts are still served from the cache.
func (a *app) openSinks(ctx context.Context) []scheduler.Sink {
	var sinks []scheduler.Sink

	if a.cfg.Database.Enabled {
		db, err := database.NewDB(ctx, a.cfg.Database.DSN)
		if err != nil {
			a.logger.Warn("forecast history store unavailable", "error", err)
		} else {
			a.db = db
			a.closers = append(a.closers, db.Close)
			sinks = append(sinks, db)
			a.logger.Info("forecast history store enabled")
		}
	}

	if a.cfg.Redis.Enabled {
		client, err := stream.Connect(ctx, a.cfg.Redis)
		if err != nil {
			a.logger.Warn("forecast stream unavailable", "error", err)
		} else {
			a.closers = append(a.closers, client.Close)
			sinks = append(sinks, stream.NewPublisher(client, a.cfg.Redis.Stream, a.cfg.Redis.MaxLen))
			a.logger.Info("forecast stream enabled", "addr", a.cfg.Redis.Addr, "stream", a.cfg.Redis.Stream)
		}
	}

	return sinks
}

// history returns the store for the history route, or nil when disabled.
func (a *app) history() server.HistoryStore {
	if a.db == nil {
		return nil
	}
	return a.db
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
}
