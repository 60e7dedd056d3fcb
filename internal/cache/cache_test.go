package cache

import (
	"fmt"
	"humidcast/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotOf(cycle string, results ...models.Result) models.Snapshot {
	snap := models.Snapshot{
		CycleID:     cycle,
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Results:     make(map[string]models.Result),
	}
	for _, r := range results {
		snap.Results[r.SensorID] = r
	}
	return snap
}

func TestNew_Empty(t *testing.T) {
	c := New()

	snap := c.ReadAll()
	assert.Empty(t, snap.Results)
	assert.NotNil(t, snap.Results)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.PublishedAt().IsZero())

	_, ok := c.Get("S1")
	assert.False(t, ok)
}

func TestPublish_ReplacesWholeSnapshot(t *testing.T) {
	c := New()
	c.Publish(snapshotOf("c1", models.Ok("S1", 41.5), models.Ok("S2", 60)))
	c.Publish(snapshotOf("c2", models.Failed("S3", models.KindFetch, "No data found for sensor S3")))

	snap := c.ReadAll()
	assert.Equal(t, "c2", snap.CycleID)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "No data found for sensor S3", snap.Results["S3"].Error)

	_, ok := c.Get("S1")
	assert.False(t, ok, "entries from the previous cycle must not survive a publish")
}

func TestPublish_CopiesInput(t *testing.T) {
	c := New()
	snap := snapshotOf("c1", models.Ok("S1", 41.5))
	c.Publish(snap)

	snap.Results["S1"] = models.Ok("S1", -1)
	snap.Results["S9"] = models.Ok("S9", 1)

	r, ok := c.Get("S1")
	require.True(t, ok)
	assert.Equal(t, 41.5, r.Value)
	assert.Equal(t, 1, c.Len())
}

func TestReadAll_ReturnsCopy(t *testing.T) {
	c := New()
	c.Publish(snapshotOf("c1", models.Ok("S1", 41.5)))

	snap := c.ReadAll()
	delete(snap.Results, "S1")

	assert.Equal(t, 1, c.Len())
}

func TestPublish_NilResults(t *testing.T) {
	c := New()
	c.Publish(models.Snapshot{CycleID: "c1"})

	assert.NotNil(t, c.ReadAll().Results)
	assert.Equal(t, 0, c.Len())
}

// Every snapshot published here has all values equal to its cycle number,
// so a reader that ever sees two different values has observed a torn read.
func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	const (
		sensors = 50
		cycles  = 200
		readers = 8
	)

	build := func(cycle int) models.Snapshot {
		snap := models.Snapshot{CycleID: fmt.Sprint(cycle), Results: make(map[string]models.Result, sensors)}
		for i := range sensors {
			id := fmt.Sprintf("S%d", i)
			snap.Results[id] = models.Ok(id, float64(cycle))
		}
		return snap
	}

	c := New()
	c.Publish(build(0))

	done := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, readers)

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := c.ReadAll()
				if len(snap.Results) != sensors {
					errs <- fmt.Sprintf("cycle %s has %d results", snap.CycleID, len(snap.Results))
					return
				}
				want := snap.Results["S0"].Value
				for id, r := range snap.Results {
					if r.Value != want {
						errs <- fmt.Sprintf("cycle %s mixes values: %s=%v, S0=%v", snap.CycleID, id, r.Value, want)
						return
					}
				}
			}
		}()
	}

	for cycle := 1; cycle <= cycles; cycle++ {
		c.Publish(build(cycle))
	}
	close(done)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
	assert.Equal(t, fmt.Sprint(cycles), c.ReadAll().CycleID)
}
