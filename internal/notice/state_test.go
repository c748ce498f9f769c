package notice

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCacheRemembers(t *testing.T) {
	c := NewDedupCache(1000, 500)
	assert.False(t, c.Seen(1))
	c.Add(1)
	c.Add(1)
	assert.True(t, c.Seen(1))
	assert.Equal(t, 1, c.Len())
}

func TestDedupCachePrunesToMostRecent(t *testing.T) {
	c := NewDedupCache(1000, 500)

	ids := rand.Perm(1001)
	for _, id := range ids {
		c.Add(id + 1)
	}

	require.Equal(t, 500, c.Len())
	for id := 502; id <= 1001; id++ {
		assert.True(t, c.Seen(id), "id %d should be kept", id)
	}
	for id := 1; id <= 501; id++ {
		assert.False(t, c.Seen(id), "id %d should be pruned", id)
	}
}

func TestDedupCacheBelowCeiling(t *testing.T) {
	c := NewDedupCache(1000, 500)
	for id := 1; id <= 1000; id++ {
		c.Add(id)
	}
	assert.Equal(t, 1000, c.Len())
}

func TestWatermark(t *testing.T) {
	t0 := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	w := NewWatermark(10 * time.Second)

	_, ok := w.Since(t0)
	assert.False(t, ok, "first call must skip the cycle")
	assert.Equal(t, t0, w.Last())

	since, ok := w.Since(t0.Add(10 * time.Second))
	require.True(t, ok)
	assert.Equal(t, t0, since)

	w.Advance(t0.Add(10 * time.Second))
	assert.Equal(t, t0.Add(10*time.Second), w.Last())

	// Clock went backwards.
	since, ok = w.Since(t0.Add(5 * time.Second))
	require.True(t, ok)
	assert.Equal(t, t0.Add(-5*time.Second), since)

	w.Advance(t0.Add(5 * time.Second))
	assert.Equal(t, t0.Add(10*time.Second), w.Last(), "advance must not move backwards")

	w.Reset(t0)
	assert.Equal(t, t0, w.Last())
}
