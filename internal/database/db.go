package database

import (
	"context"
	"database/sql"
	"fmt"
	"humidcast/internal/metrics"
	"humidcast/internal/models"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// DB is the forecast history store. Every published snapshot is appended, so
// past cycles stay queryable after the cache has moved on.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
// example: "user:pass@tcp(localhost:3306)/humidcast?parseTime=true"
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema(ctx context.Context) error {
	// MySQL doesn't support multiple statements in one Exec, so we need to split them
	statements := []string{
		`CREATE TABLE IF NOT EXISTS refresh_cycles (
			cycle_id CHAR(36) PRIMARY KEY,
			generated_at DATETIME(6) NOT NULL,
			sensors INT NOT NULL,
			succeeded INT NOT NULL,
			failed INT NOT NULL,
			INDEX idx_refresh_cycles_generated_at (generated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cycle_id CHAR(36) NOT NULL,
			sensor_id VARCHAR(255) NOT NULL,
			label VARCHAR(255) NOT NULL DEFAULT '',
			generated_at DATETIME(6) NOT NULL,
			value DOUBLE NULL,
			mse DOUBLE NULL,
			train_rows INT NOT NULL DEFAULT 0,
			test_rows INT NOT NULL DEFAULT 0,
			kind VARCHAR(50) NOT NULL DEFAULT '',
			error TEXT NULL,
			INDEX idx_forecasts_sensor (sensor_id, generated_at),
			INDEX idx_forecasts_cycle (cycle_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Name identifies the store in logs and metrics
func (db *DB) Name() string {
	return "mysql"
}

// WriteSnapshot stores one published cycle and all of its results in a
// single transaction. Writing a cycle that is already stored is a no-op.
func (db *DB) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	defer db.recordStats()

	if len(snap.Results) == 0 {
		return nil
	}

	queryStart := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	ok, failed := snap.Counts()
	res, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO refresh_cycles (cycle_id, generated_at, sensors, succeeded, failed) VALUES (?, ?, ?, ?, ?)`,
		snap.CycleID, snap.GeneratedAt, len(snap.Results), ok, failed)
	metrics.RecordDBQuery("INSERT", "refresh_cycles", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %s: %w", snap.CycleID, err)
	}
	// a cycle arrives twice when both serve and archive write to the same store
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecasts
		(cycle_id, sensor_id, label, generated_at, value, mse, train_rows, test_rows, kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	insertStart := time.Now()
	for _, rec := range forecastRecords(snap) {
		if _, err = stmt.ExecContext(ctx, rec.args()...); err != nil {
			break
		}
	}
	metrics.RecordDBQuery("INSERT", "forecasts", time.Since(insertStart), err)
	if err != nil {
		return fmt.Errorf("failed to insert forecasts for cycle %s: %w", snap.CycleID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SensorHistory returns the most recent stored results for one sensor,
// newest first.
func (db *DB) SensorHistory(ctx context.Context, sensorID string, limit int) ([]models.Result, error) {
	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT sensor_id, label, generated_at, value, mse, train_rows, test_rows, kind, error
		FROM forecasts WHERE sensor_id = ? ORDER BY generated_at DESC LIMIT ?`,
		sensorID, limit)
	metrics.RecordDBQuery("SELECT", "forecasts", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", sensorID, err)
	}
	defer rows.Close()

	var results []models.Result
	for rows.Next() {
		var rec forecastRecord
		if err := rows.Scan(&rec.SensorID, &rec.Label, &rec.GeneratedAt, &rec.Value, &rec.MSE,
			&rec.TrainRows, &rec.TestRows, &rec.Kind, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		results = append(results, rec.result())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecasts: %w", err)
	}
	return results, nil
}

// Ping reports whether the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) recordStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}
