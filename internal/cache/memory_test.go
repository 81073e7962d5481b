package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFreshHit(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), time.Minute)

	value, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryMiss(t *testing.T) {
	store := NewMemory()

	_, ok := store.Get(context.Background(), "absent")
	assert.False(t, ok)

	_, _, ok = store.GetStale(context.Background(), "absent")
	assert.False(t, ok)
}

func TestMemoryExpiryAndStale(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	store.Set(ctx, "k", []byte("v"), time.Minute)

	// Advance past the TTL: fresh reads miss, stale reads still serve.
	now = now.Add(2 * time.Minute)

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)

	value, fresh, ok := store.GetStale(ctx, "k")
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryOverwriteRefreshes(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	store.Set(ctx, "k", []byte("old"), time.Minute)
	now = now.Add(2 * time.Minute)
	store.Set(ctx, "k", []byte("new"), time.Minute)

	value, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), value)
}
