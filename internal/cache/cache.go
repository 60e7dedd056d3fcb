// Package cache holds the most recently published forecast snapshot.
package cache

import (
	"humidcast/internal/models"
	"maps"
	"sync/atomic"
	"time"
)

// PredictionCache is a read-mostly snapshot store. Publish replaces the whole
// snapshot in one atomic swap, so readers see either the old cycle or the new
// one and never a mix of both.
type PredictionCache struct {
	current atomic.Pointer[models.Snapshot]
}

func New() *PredictionCache {
	c := &PredictionCache{}
	c.current.Store(&models.Snapshot{Results: map[string]models.Result{}})
	return c
}

// Publish installs snap as the current snapshot. The results map is copied,
// so later changes by the caller do not leak into readers.
func (c *PredictionCache) Publish(snap models.Snapshot) {
	stored := snap
	stored.Results = maps.Clone(snap.Results)
	if stored.Results == nil {
		stored.Results = map[string]models.Result{}
	}
	c.current.Store(&stored)
}

// ReadAll returns a copy of the current snapshot.
func (c *PredictionCache) ReadAll() models.Snapshot {
	snap := *c.current.Load()
	snap.Results = maps.Clone(snap.Results)
	return snap
}

// Get returns one sensor's entry from the current snapshot.
func (c *PredictionCache) Get(sensorID string) (models.Result, bool) {
	r, ok := c.current.Load().Results[sensorID]
	return r, ok
}

// Len is the number of sensors in the current snapshot
func (c *PredictionCache) Len() int {
	return len(c.current.Load().Results)
}

// PublishedAt is when the current snapshot was generated; zero before the
// first publish.
func (c *PredictionCache) PublishedAt() time.Time {
	return c.current.Load().GeneratedAt
}
