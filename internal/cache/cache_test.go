package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	t.Parallel()
	c := New[string](time.Minute, nil)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](5*time.Minute, func() time.Time { return clock })

	c.Set("k", 42)

	clock = clock.Add(5 * time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok, "an entry at exactly its deadline is still fresh")
	assert.Equal(t, 42, got)

	clock = clock.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expiry does not evict")
}

func TestCacheSetResetsTTL(t *testing.T) {
	t.Parallel()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](5*time.Minute, func() time.Time { return clock })

	c.Set("k", 1)
	clock = clock.Add(4 * time.Minute)
	c.Set("k", 2)
	clock = clock.Add(4 * time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()
	c := New[string](time.Minute, nil)
	c.Set("k", "v")
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
