package stream

import (
	"context"
	"encoding/json"
	"errors"
	"humidcast/internal/models"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeAdder struct {
	calls []*redis.XAddArgs
	err   error
}

func (f *fakeAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		CycleID:     "c0ffee00-0000-4000-8000-000000000000",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Results: map[string]models.Result{
			"S1": models.Failed("S1", models.KindFetch, "No data found for sensor S1"),
			"S2": models.Ok("S2", 47.25),
		},
	}
}

func TestPublisher_WriteSnapshot(t *testing.T) {
	client := &fakeAdder{}
	p := NewPublisher(client, "humidity_forecasts", 500)

	if err := p.WriteSnapshot(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("XAdd called %d times, want 1", len(client.calls))
	}

	args := client.calls[0]
	if args.Stream != "humidity_forecasts" {
		t.Errorf("Stream = %v, want humidity_forecasts", args.Stream)
	}
	if args.MaxLen != 500 || !args.Approx {
		t.Errorf("MaxLen = %d, Approx = %v, want 500, true", args.MaxLen, args.Approx)
	}

	values := args.Values.(map[string]interface{})
	if values["cycle_id"] != "c0ffee00-0000-4000-8000-000000000000" {
		t.Errorf("cycle_id = %v", values["cycle_id"])
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(values["data"].(string)), &decoded); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if decoded["succeeded"] != 1.0 || decoded["failed"] != 1.0 {
		t.Errorf("counts = %v/%v, want 1/1", decoded["succeeded"], decoded["failed"])
	}

	predictions := decoded["predictions"].(map[string]interface{})
	if predictions["S2"] != 47.25 {
		t.Errorf("S2 = %v, want 47.25", predictions["S2"])
	}
	if predictions["S1"] != "No data found for sensor S1" {
		t.Errorf("S1 = %v, want the error string", predictions["S1"])
	}
}

func TestPublisher_Untrimmed(t *testing.T) {
	client := &fakeAdder{}
	p := NewPublisher(client, "s", 0)

	if err := p.WriteSnapshot(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	if client.calls[0].Approx {
		t.Error("Approx should be off when the stream is untrimmed")
	}
}

func TestPublisher_Error(t *testing.T) {
	client := &fakeAdder{err: errors.New("connection refused")}
	p := NewPublisher(client, "s", 10)

	err := p.WriteSnapshot(context.Background(), testSnapshot())
	if err == nil {
		t.Fatal("Expected error from XAdd, got nil")
	}
	if p.Name() != "redis" {
		t.Errorf("Name() = %v, want redis", p.Name())
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	client := &fakeAdder{}
	p := NewPublisher(client, "s", 10)
	snap := testSnapshot()
	if err := p.WriteSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}

	got, err := DecodeEntry(client.calls[0].Values.(map[string]interface{}))
	if err != nil {
		t.Fatalf("DecodeEntry() error = %v", err)
	}
	if got.CycleID != snap.CycleID || !got.GeneratedAt.Equal(snap.GeneratedAt) {
		t.Errorf("DecodeEntry() = %s at %v, want %s at %v", got.CycleID, got.GeneratedAt, snap.CycleID, snap.GeneratedAt)
	}
	if got.Results["S1"].Error != "No data found for sensor S1" || got.Results["S1"].Kind != models.KindFetch {
		t.Errorf("S1 = %+v, want the fetch failure", got.Results["S1"])
	}
	if got.Results["S2"].Value != 47.25 {
		t.Errorf("S2 = %+v, want value 47.25", got.Results["S2"])
	}
}
