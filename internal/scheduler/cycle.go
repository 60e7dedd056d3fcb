package scheduler

import (
	"context"
	"fmt"
	"humidcast/internal/metrics"
	"humidcast/internal/models"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sensorResult is one worker's answer for one sensor
type sensorResult struct {
	SensorID       string
	Result         models.Result
	ProcessingTime time.Duration
}

// RunCycle performs one refresh: authenticate, enumerate, refresh every sensor,
// publish. It returns an error only when the cycle ended without publishing;
// per-sensor failures are recorded in the published snapshot instead.
func (r *Refresher) RunCycle(ctx context.Context) (models.CycleReport, error) {
	// one cycle at a time, so the cache keeps a single writer
	r.running.Lock()
	defer r.running.Unlock()

	report := models.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: r.now(),
	}
	logger := r.deps.Logger.With("cycle_id", report.CycleID)

	r.enter(StateAuthenticating)
	token, err := r.deps.Sessions.Acquire(ctx)
	if err != nil {
		logger.Error("authentication failed, skipping cycle", "error", err)
		return r.finish(report, OutcomeAuthFailed, err), err
	}

	r.enter(StateEnumerating)
	sensors, err := r.deps.Catalog.ListSensors(ctx, token)
	if err != nil {
		logger.Error("sensor enumeration failed, skipping cycle", "error", err)
		return r.finish(report, OutcomeEnumerationFailed, err), err
	}
	report.Sensors = len(sensors)
	logger.Info("refreshing sensors", "sensors", len(sensors), "workers", min(r.opts.Workers, len(sensors)))

	results := r.refreshAll(ctx, logger, sensors)

	if err := ctx.Err(); err != nil {
		logger.Warn("cycle cancelled before publishing", "error", err)
		return r.finish(report, OutcomeCancelled, err), err
	}

	r.enter(StatePublishing)
	snap := models.Snapshot{
		CycleID:     report.CycleID,
		GeneratedAt: r.now(),
		Results:     results,
	}
	r.deps.Cache.Publish(snap)
	metrics.RecordPublish(len(snap.Results), snap.GeneratedAt)
	report.Succeeded, report.Failed = snap.Counts()

	r.writeSinks(ctx, logger, snap)

	return r.finish(report, OutcomePublished, nil), nil
}

func (r *Refresher) finish(report models.CycleReport, outcome string, err error) models.CycleReport {
	report.Duration = r.now().Sub(report.StartedAt)
	report.Outcome = outcome
	if err != nil {
		report.Error = err.Error()
	}
	metrics.RecordCycle(outcome, report.Duration)

	r.update(func(s *Status) {
		s.Done, s.Total = 0, 0
		s.LastCycle = &report
	})

	if outcome == OutcomePublished {
		r.deps.Logger.Info("refresh cycle complete",
			"cycle_id", report.CycleID,
			"sensors", report.Sensors,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"duration", report.Duration.String())
	}
	return report
}

// refreshAll fans sensors out to a bounded worker pool and collects one
// result per sensor.
func (r *Refresher) refreshAll(ctx context.Context, logger *slog.Logger, sensors []string) map[string]models.Result {
	total := len(sensors)
	r.update(func(s *Status) {
		s.State = StateRefreshing
		s.Done, s.Total = 0, total
	})

	numWorkers := min(r.opts.Workers, total)
	jobs := make(chan string, total)
	results := make(chan sensorResult, total)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go r.worker(ctx, jobs, results, &wg)
	}

	for _, id := range sensors {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]models.Result, total)
	done := 0
	for res := range results {
		done++
		out[res.SensorID] = res.Result
		r.update(func(s *Status) { s.Done = done })

		if res.Result.IsOK() {
			logger.Info("sensor forecast ready",
				"progress", progress(done, total),
				"sensor", res.SensorID,
				"value", res.Result.Value,
				"mse", res.Result.MSE,
				"elapsed", res.ProcessingTime.String())
		} else {
			logger.Warn("sensor forecast failed",
				"progress", progress(done, total),
				"sensor", res.SensorID,
				"kind", res.Result.Kind,
				"error", res.Result.Error,
				"elapsed", res.ProcessingTime.String())
		}
	}
	return out
}

// worker refreshes sensors from jobs. It asks the session for a credential
// before every sensor, so a token invalidated by one sensor's 401 is replaced
// once and then shared by the rest.
func (r *Refresher) worker(ctx context.Context, jobs <-chan string, results chan<- sensorResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for sensorID := range jobs {
		startTime := time.Now()

		token, err := r.deps.Sessions.Acquire(ctx)
		if err != nil {
			result := models.Failed(sensorID, models.KindAuth, err.Error())
			result.GeneratedAt = r.now()
			metrics.RecordSensorResult(result.Kind)
			results <- sensorResult{SensorID: sensorID, Result: result, ProcessingTime: time.Since(startTime)}
			continue
		}

		id, result := r.RefreshOne(ctx, sensorID, token)
		results <- sensorResult{SensorID: id, Result: result, ProcessingTime: time.Since(startTime)}
	}
}

func (r *Refresher) writeSinks(ctx context.Context, logger *slog.Logger, snap models.Snapshot) {
	for _, sink := range r.deps.Sinks {
		if err := sink.WriteSnapshot(ctx, snap); err != nil {
			metrics.RecordSinkError(sink.Name())
			logger.Error("failed to write snapshot", "sink", sink.Name(), "error", err)
		}
	}
}

func progress(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}
