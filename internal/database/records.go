package database

import (
	"database/sql"
	"humidcast/internal/models"
	"slices"
	"strings"
	"time"
)

// forecastRecord is one row of the forecasts table. A failed sensor stores
// NULL value and mse; a successful one stores a NULL error.
type forecastRecord struct {
	CycleID     string
	SensorID    string
	Label       string
	GeneratedAt time.Time
	Value       sql.NullFloat64
	MSE         sql.NullFloat64
	TrainRows   int
	TestRows    int
	Kind        string
	Error       sql.NullString
}

// forecastRecords flattens a snapshot into rows ordered by sensor id.
func forecastRecords(snap models.Snapshot) []forecastRecord {
	records := make([]forecastRecord, 0, len(snap.Results))
	for id, r := range snap.Results {
		rec := forecastRecord{
			CycleID:     snap.CycleID,
			SensorID:    id,
			Label:       r.Label,
			GeneratedAt: r.GeneratedAt,
			TrainRows:   r.TrainRows,
			TestRows:    r.TestRows,
			Kind:        r.Kind,
		}
		if rec.GeneratedAt.IsZero() {
			rec.GeneratedAt = snap.GeneratedAt
		}
		if r.IsOK() {
			rec.Value = sql.NullFloat64{Float64: r.Value, Valid: true}
			rec.MSE = sql.NullFloat64{Float64: r.MSE, Valid: true}
		} else {
			rec.Error = sql.NullString{String: r.Error, Valid: true}
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b forecastRecord) int {
		return strings.Compare(a.SensorID, b.SensorID)
	})
	return records
}

func (rec forecastRecord) args() []any {
	return []any{
		rec.CycleID, rec.SensorID, rec.Label, rec.GeneratedAt,
		rec.Value, rec.MSE, rec.TrainRows, rec.TestRows, rec.Kind, rec.Error,
	}
}

func (rec forecastRecord) result() models.Result {
	r := models.Result{
		SensorID:    rec.SensorID,
		Label:       rec.Label,
		GeneratedAt: rec.GeneratedAt,
		TrainRows:   rec.TrainRows,
		TestRows:    rec.TestRows,
		Kind:        rec.Kind,
		Value:       rec.Value.Float64,
		MSE:         rec.MSE.Float64,
	}
	if rec.Error.Valid {
		r.Error = rec.Error.String
	}
	return r
}
