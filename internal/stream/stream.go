// Package stream publishes every refreshed forecast snapshot to a Redis stream
// so downstream consumers can follow cycles without polling the HTTP facade.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"humidcast/internal/config"
	"humidcast/internal/models"
	"time"

	"github.com/go-redis/redis/v8"
)

// Adder is the slice of the Redis client the publisher needs
type Adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends one entry per published snapshot
type Publisher struct {
	client Adder
	stream string
	maxLen int64
}

// Payload is the JSON document stored under the entry's "data" field.
// Predictions is the bulk view served on /predict_all; Results keeps the
// detail needed to rebuild the snapshot.
type Payload struct {
	CycleID     string                       `json:"cycle_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Succeeded   int                          `json:"succeeded"`
	Failed      int                          `json:"failed"`
	Predictions map[string]models.Prediction `json:"predictions"`
	Results     map[string]models.Result     `json:"results"`
}

// Snapshot rebuilds the published snapshot the payload was made from.
func (p Payload) Snapshot() models.Snapshot {
	results := p.Results
	if results == nil {
		results = map[string]models.Result{}
	}
	return models.Snapshot{CycleID: p.CycleID, GeneratedAt: p.GeneratedAt, Results: results}
}

// Connect opens a Redis client for cfg and checks it answers.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewPublisher writes to stream, trimming it to roughly maxLen entries; a
// maxLen of zero leaves the stream untrimmed.
func NewPublisher(client Adder, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Name() string {
	return "redis"
}

// WriteSnapshot adds snap to the stream.
func (p *Publisher) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	args, err := p.entry(snap)
	if err != nil {
		return err
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish cycle %s to %s: %w", snap.CycleID, p.stream, err)
	}
	return nil
}

func (p *Publisher) entry(snap models.Snapshot) (*redis.XAddArgs, error) {
	ok, failed := snap.Counts()
	data, err := json.Marshal(Payload{
		CycleID:     snap.CycleID,
		GeneratedAt: snap.GeneratedAt,
		Succeeded:   ok,
		Failed:      failed,
		Predictions: snap.Predictions(),
		Results:     snap.Results,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize cycle %s: %w", snap.CycleID, err)
	}

	return &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]interface{}{
			"cycle_id": snap.CycleID,
			"data":     string(data),
		},
	}, nil
}
