package scheduler

import (
	"context"
	"errors"
	"fmt"
	"humidcast/internal/api"
	"humidcast/internal/metrics"
	"humidcast/internal/models"
	"humidcast/internal/predictor"
)

// RefreshOne fetches one sensor's history and forecasts it. Every failure,
// a panic included, comes back as a failed Result; it never returns an error.
func (r *Refresher) RefreshOne(ctx context.Context, sensorID, token string) (id string, result models.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.deps.Logger.Error("sensor refresh panicked", "sensor", sensorID, "panic", p)
			result = models.Failed(sensorID, models.KindInternal, fmt.Sprintf("internal error: %v", p))
		}
		id = sensorID
		result.GeneratedAt = r.now()
		metrics.RecordSensorResult(result.Kind)
	}()

	series, err := r.deps.History.FetchHistory(ctx, token, sensorID, r.opts.WindowDays)
	if err != nil {
		return sensorID, models.Failed(sensorID, Classify(err), err.Error())
	}

	forecast, err := r.deps.Forecaster.Run(series)
	if err != nil {
		result = models.Failed(sensorID, Classify(err), err.Error())
		result.Label = series.Label
		return sensorID, result
	}
	metrics.RecordModelMSE(forecast.MSE)

	result = models.Ok(sensorID, forecast.Value)
	result.Label = series.Label
	result.MSE = forecast.MSE
	result.TrainRows = forecast.TrainRows
	result.TestRows = forecast.TestRows
	return sensorID, result
}

// Classify maps an error to the failure kind recorded on a Result.
func Classify(err error) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrAuth):
		return models.KindAuth
	case errors.Is(err, api.ErrFetch):
		return models.KindFetch
	case errors.Is(err, predictor.ErrInsufficientData):
		return models.KindInsufficientData
	case errors.Is(err, predictor.ErrMalformedSeries):
		return models.KindMalformedSeries
	case errors.Is(err, predictor.ErrFit):
		return models.KindFit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.KindFetch
	default:
		return models.KindInternal
	}
}
