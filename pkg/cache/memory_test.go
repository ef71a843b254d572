package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, found, err := c.Get(ctx, "tag:premium")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "tag:premium", "42", 0))
	v, found, err := c.Get(ctx, "tag:premium")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", v)

	require.NoError(t, c.Delete(ctx, "tag:premium"))
	_, found, _ = c.Get(ctx, "tag:premium")
	assert.False(t, found)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	_, found, _ := c.Get(ctx, "k")
	assert.True(t, found)

	now = now.Add(time.Minute)
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}
