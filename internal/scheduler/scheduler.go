// Package scheduler runs the refresh loop: authenticate, enumerate sensors,
// forecast each one in isolation, publish the complete mapping, sleep.
package scheduler

import (
	"context"
	"humidcast/internal/models"
	"humidcast/internal/predictor"
	"log/slog"
	"sync"
	"time"
)

// Sessions hands out the upstream credential
type Sessions interface {
	Acquire(ctx context.Context) (string, error)
}

// Catalog enumerates sensors
type Catalog interface {
	ListSensors(ctx context.Context, token string) ([]string, error)
}

// History fetches one sensor's recent daily averages
type History interface {
	FetchHistory(ctx context.Context, token, sensorID string, windowDays int) (models.Series, error)
}

// Forecaster turns a series into a next-step forecast
type Forecaster interface {
	Run(series models.Series) (predictor.Forecast, error)
}

// Publisher receives each complete snapshot
type Publisher interface {
	Publish(snap models.Snapshot)
}

// Sink is a best-effort secondary destination for published snapshots.
type Sink interface {
	Name() string
	WriteSnapshot(ctx context.Context, snap models.Snapshot) error
}

// Deps are the collaborators a Refresher drives
type Deps struct {
	Sessions   Sessions
	Catalog    Catalog
	History    History
	Forecaster Forecaster
	Cache      Publisher
	Sinks      []Sink
	Logger     *slog.Logger
}

type Options struct {
	WindowDays int
	Interval   time.Duration
	Workers    int
	RunOnStart bool
}

const (
	DefaultWindowDays = 30
	DefaultInterval   = 24 * time.Hour
	DefaultWorkers    = 4
)

// Refresher owns the refresh loop. The cache is its only output; nothing
// else it holds is visible outside except through State.
type Refresher struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu      sync.RWMutex
	status  Status
	running sync.Mutex
}

func New(deps Deps, opts Options) *Refresher {
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Refresher{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		status: Status{State: StateIdle},
	}
}

// Run loops until ctx is cancelled. A failed cycle leaves the cache as it was
// and is retried after the next interval, never sooner.
func (r *Refresher) Run(ctx context.Context) error {
	r.deps.Logger.Info("refresh scheduler started",
		"interval", r.opts.Interval.String(),
		"workers", r.opts.Workers,
		"window_days", r.opts.WindowDays,
		"run_on_start", r.opts.RunOnStart)

	if !r.opts.RunOnStart && !r.sleep(ctx) {
		return r.stop()
	}
	for {
		if ctx.Err() != nil {
			return r.stop()
		}
		// errors are logged and reported on the status; the loop carries on
		_, _ = r.RunCycle(ctx)
		if !r.sleep(ctx) {
			return r.stop()
		}
	}
}

// sleep waits one interval; it reports false if ctx ended the wait.
func (r *Refresher) sleep(ctx context.Context) bool {
	next := r.now().Add(r.opts.Interval)
	r.update(func(s *Status) {
		s.State = StateSleeping
		s.NextRun = next
	})
	r.deps.Logger.Debug("sleeping until next refresh", "next_run", next)

	timer := time.NewTimer(r.opts.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Refresher) stop() error {
	r.update(func(s *Status) {
		s.State = StateStopped
		s.NextRun = time.Time{}
	})
	r.deps.Logger.Info("refresh scheduler stopped")
	return nil
}
