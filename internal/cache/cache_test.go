package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/cache"
)

func TestExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c, err := cache.New(8, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c.Set(1, "posts", time.Minute)
	v, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, "posts", v)

	now = now.Add(59 * time.Second)
	_, ok = c.Get(1)
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get(1)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestZeroTTLIsNotStored(t *testing.T) {
	c, err := cache.New(8)
	require.NoError(t, err)
	c.Set(1, "x", 0)
	_, ok := c.Get(1)
	require.False(t, ok)
}

func TestEviction(t *testing.T) {
	c, err := cache.New(2)
	require.NoError(t, err)
	c.Set(1, "a", time.Hour)
	c.Set(2, "b", time.Hour)
	c.Set(3, "c", time.Hour)
	_, ok := c.Get(1)
	require.False(t, ok)
	require.Equal(t, 2, c.Len())
}
