package database

import (
	"context"
	"humidcast/internal/models"
	"os"
	"testing"
	"time"
)

func testSnapshot() models.Snapshot {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ok := models.Ok("S2", 47.25)
	ok.Label = "Greenhouse"
	ok.MSE = 1.5
	ok.TrainRows, ok.TestRows = 4, 1
	ok.GeneratedAt = at

	return models.Snapshot{
		CycleID:     "2f1e4c8a-0000-4000-8000-000000000001",
		GeneratedAt: at,
		Results: map[string]models.Result{
			"S2": ok,
			"S1": models.Failed("S1", models.KindFetch, "No data found for sensor S1"),
		},
	}
}

func TestForecastRecords(t *testing.T) {
	snap := testSnapshot()
	records := forecastRecords(snap)

	if len(records) != 2 {
		t.Fatalf("forecastRecords() returned %d records, want 2", len(records))
	}
	if records[0].SensorID != "S1" || records[1].SensorID != "S2" {
		t.Errorf("records not ordered by sensor: %s, %s", records[0].SensorID, records[1].SensorID)
	}

	failed := records[0]
	if failed.Value.Valid || failed.MSE.Valid {
		t.Error("failed sensor should store NULL value and mse")
	}
	if !failed.Error.Valid || failed.Error.String != "No data found for sensor S1" {
		t.Errorf("Error = %+v, want the failure reason", failed.Error)
	}
	if !failed.GeneratedAt.Equal(snap.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want snapshot time %v", failed.GeneratedAt, snap.GeneratedAt)
	}

	ok := records[1]
	if !ok.Value.Valid || ok.Value.Float64 != 47.25 {
		t.Errorf("Value = %+v, want 47.25", ok.Value)
	}
	if ok.Error.Valid {
		t.Error("successful sensor should store a NULL error")
	}
	if ok.CycleID != snap.CycleID {
		t.Errorf("CycleID = %v, want %v", ok.CycleID, snap.CycleID)
	}
}

func TestForecastRecordRoundTrip(t *testing.T) {
	snap := testSnapshot()
	for _, rec := range forecastRecords(snap) {
		got := rec.result()
		want := snap.Results[rec.SensorID]
		if want.GeneratedAt.IsZero() {
			want.GeneratedAt = snap.GeneratedAt
		}
		if got != want {
			t.Errorf("result() = %+v, want %+v", got, want)
		}
	}
}

func TestForecastRecordArgs(t *testing.T) {
	rec := forecastRecords(testSnapshot())[1]
	if got := len(rec.args()); got != 10 {
		t.Errorf("args() has %d values, want 10 to match the insert statement", got)
	}
}

// TestDB_WriteSnapshot runs against a real MySQL when HUMIDCAST_TEST_DSN is set.
func TestDB_WriteSnapshot(t *testing.T) {
	dsn := os.Getenv("HUMIDCAST_TEST_DSN")
	if dsn == "" {
		t.Skip("HUMIDCAST_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	snap := testSnapshot()
	snap.CycleID = time.Now().Format("20060102150405.000000")
	if err := db.WriteSnapshot(ctx, snap); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}

	history, err := db.SensorHistory(ctx, "S2", 1)
	if err != nil {
		t.Fatalf("SensorHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Value != 47.25 {
		t.Errorf("SensorHistory() = %+v, want one result with value 47.25", history)
	}
}

func TestDB_WriteSnapshotIdempotent(t *testing.T) {
	dsn := os.Getenv("HUMIDCAST_TEST_DSN")
	if dsn == "" {
		t.Skip("HUMIDCAST_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	snap := testSnapshot()
	snap.CycleID = "dup-" + time.Now().Format("20060102150405.000000")
	for i := 0; i < 2; i++ {
		if err := db.WriteSnapshot(ctx, snap); err != nil {
			t.Fatalf("WriteSnapshot() attempt %d error = %v", i+1, err)
		}
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM forecasts WHERE cycle_id = ?`, snap.CycleID).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != len(snap.Results) {
		t.Errorf("stored %d forecasts, want %d", count, len(snap.Results))
	}
}
