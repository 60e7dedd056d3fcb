package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh engine metrics
var (
	// RefreshCyclesTotal counts refresh cycles by how they ended
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humidcast_refresh_cycles_total",
			Help: "Total number of refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	// RefreshCycleDuration tracks how long a full cycle takes
	RefreshCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "humidcast_refresh_cycle_duration_seconds",
			Help:    "Duration of refresh cycles in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// SensorForecastsTotal counts per-sensor results; status is "ok" or the failure kind
	SensorForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humidcast_sensor_forecasts_total",
			Help: "Total number of per-sensor forecast results by status",
		},
		[]string{"status"},
	)

	// ModelTestMSE tracks the held-out error of every fitted model
	ModelTestMSE = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "humidcast_model_test_mse",
			Help:    "Mean squared error of per-sensor models on held-out rows",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	// CacheEntries is the number of sensors in the published cache
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "humidcast_cache_entries",
			Help: "Number of sensors in the currently published prediction cache",
		},
	)

	// CacheLastPublish is when the cache was last replaced
	CacheLastPublish = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "humidcast_cache_last_publish_timestamp_seconds",
			Help: "Unix timestamp of the last prediction cache publish",
		},
	)

	// SinkErrorsTotal counts failed writes to the history store and stream
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humidcast_sink_errors_total",
			Help: "Total number of failed snapshot writes by sink",
		},
		[]string{"sink"},
	)
)

// Upstream telemetry API metrics
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "humidcast_upstream_requests_total",
			Help: "Total number of upstream telemetry API requests",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "humidcast_upstream_request_duration_seconds",
			Help:    "Duration of upstream telemetry API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

var (
	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "humidcast_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "humidcast_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

// RecordCycle records the end of a refresh cycle
func RecordCycle(outcome string, duration time.Duration) {
	RefreshCyclesTotal.WithLabelValues(outcome).Inc()
	RefreshCycleDuration.Observe(duration.Seconds())
}

// RecordSensorResult records one sensor's outcome; an empty kind means success.
func RecordSensorResult(kind string) {
	if kind == "" {
		kind = "ok"
	}
	SensorForecastsTotal.WithLabelValues(kind).Inc()
}

func RecordModelMSE(mse float64) {
	ModelTestMSE.Observe(mse)
}

// RecordPublish records a cache swap
func RecordPublish(entries int, at time.Time) {
	CacheEntries.Set(float64(entries))
	CacheLastPublish.Set(float64(at.Unix()))
}

func RecordSinkError(sink string) {
	SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// RecordUpstreamRequest records an upstream call. status is the HTTP status
// code, or 0 when the request never got a response.
func RecordUpstreamRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(endpoint, label).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(queryType, table, status).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}
