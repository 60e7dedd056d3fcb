package models

import (
	"encoding/json"
	"time"
)

// Reading is one daily average reported by a sensor
type Reading struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a sensor's history, oldest reading first
type Series struct {
	SensorID string    `json:"sensor_id"`
	Label    string    `json:"label,omitempty"`
	Readings []Reading `json:"readings"`
}

// Values returns the reading values in date order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		values[i] = r.Value
	}
	return values
}

// Failure kinds recorded on a Result
const (
	KindFetch            = "fetch_failure"
	KindInsufficientData = "insufficient_data"
	KindMalformedSeries  = "malformed_series"
	KindFit              = "fit_failure"
	KindAuth             = "auth_failure"
	KindInternal         = "internal"
)

// Result is the outcome of one sensor's refresh: a forecast or a failure reason.
type Result struct {
	SensorID    string    `json:"sensor_id"`
	Label       string    `json:"label,omitempty"`
	Value       float64   `json:"value"`
	Error       string    `json:"error,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	MSE         float64   `json:"mse"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Ok builds a successful Result.
func Ok(sensorID string, value float64) Result {
	return Result{SensorID: sensorID, Value: value}
}

// Failed builds a failed Result carrying reason verbatim.
func Failed(sensorID, kind, reason string) Result {
	return Result{SensorID: sensorID, Kind: kind, Error: reason}
}

func (r Result) IsOK() bool {
	return r.Error == ""
}

// Prediction is the bulk-route encoding of a Result: the bare forecast for a
// successful sensor, the bare error string otherwise.
type Prediction Result

func (p Prediction) MarshalJSON() ([]byte, error) {
	if p.Error != "" {
		return json.Marshal(p.Error)
	}
	return json.Marshal(p.Value)
}

// Snapshot is one complete published cycle
type Snapshot struct {
	CycleID     string            `json:"cycle_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Results     map[string]Result `json:"results"`
}

// Predictions returns the bulk-route view of the snapshot.
func (s Snapshot) Predictions() map[string]Prediction {
	out := make(map[string]Prediction, len(s.Results))
	for id, r := range s.Results {
		out[id] = Prediction(r)
	}
	return out
}

// Counts returns how many results succeeded and failed.
func (s Snapshot) Counts() (ok, failed int) {
	for _, r := range s.Results {
		if r.IsOK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// CycleReport summarizes one refresh cycle, published or not
type CycleReport struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Outcome   string        `json:"outcome"` // "published", "auth_failed", "enumeration_failed", "cancelled"
	Sensors   int           `json:"sensors"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Error     string        `json:"error,omitempty"`
}

// Upstream telemetry API payloads

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// CatalogResponse is the body of the upstream root route. EntriesByIdentifier
// is a pointer so a missing key can be told apart from an empty list.
type CatalogResponse struct {
	TotalCount          int             `json:"total_count"`
	EntriesByIdentifier *[]CatalogEntry `json:"entries_by_identifier"`
}

type CatalogEntry struct {
	UniqueIdentifier *string    `json:"unique_identifier"`
	Count            int64      `json:"count"`
	LatestEntry      *time.Time `json:"latest_entry"`
	Label            string     `json:"label,omitempty"`
}

// DailyAverage is one entry of the upstream averages route.
type DailyAverage struct {
	Date         *string  `json:"date"`
	AverageValue *float64 `json:"average_value"`
	EntryCount   int64    `json:"entry_count"`
}
