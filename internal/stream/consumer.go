package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"humidcast/internal/models"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// GroupReader is the slice of the Redis client a Consumer needs
type GroupReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Handler stores one snapshot read from the stream
type Handler func(ctx context.Context, snap models.Snapshot) error

// Consumer reads snapshots from the forecast stream as a member of a
// consumer group. An entry is acknowledged only after the handler succeeds,
// so a failed write is delivered again to the group.
type Consumer struct {
	client GroupReader
	stream string
	group  string
	name   string
	batch  int64
	block  time.Duration
	logger *slog.Logger
}

func NewConsumer(client GroupReader, stream, group, name string, logger *slog.Logger) *Consumer {
	return &Consumer{
		client: client,
		stream: stream,
		group:  group,
		name:   name,
		batch:  10,
		block:  5 * time.Second,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	// Create consumer group if it doesn't exist
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}

	c.logger.Info("reading forecast stream", "stream", c.stream, "group", c.group, "consumer", c.name)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx, handle); err != nil && ctx.Err() == nil {
			c.logger.Error("error reading from redis", "error", err)
		}
	}
}

// Poll reads one batch and hands every entry to handle. It returns how many
// entries were stored and acknowledged.
func (c *Consumer) Poll(ctx context.Context, handle Handler) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    c.batch,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			snap, err := DecodeEntry(msg.Values)
			if err != nil {
				// a malformed entry will never decode; acknowledge it so it is not redelivered
				c.logger.Warn("dropping malformed stream entry", "id", msg.ID, "error", err)
				c.ack(ctx, msg.ID)
				continue
			}

			if err := handle(ctx, snap); err != nil {
				c.logger.Error("failed to store snapshot", "id", msg.ID, "cycle_id", snap.CycleID, "error", err)
				continue
			}

			c.ack(ctx, msg.ID)
			stored++
			c.logger.Info("stored snapshot", "id", msg.ID, "cycle_id", snap.CycleID, "sensors", len(snap.Results))
		}
	}
	return stored, nil
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		c.logger.Warn("failed to acknowledge stream entry", "id", id, "error", err)
	}
}

// DecodeEntry rebuilds a snapshot from a stream entry written by Publisher.
func DecodeEntry(values map[string]interface{}) (models.Snapshot, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return models.Snapshot{}, fmt.Errorf("entry has no data field")
	}

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.CycleID == "" {
		return models.Snapshot{}, fmt.Errorf("payload has no cycle_id")
	}
	return payload.Snapshot(), nil
}
