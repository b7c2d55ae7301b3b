// internal/adapter/storage/signal_memory_test.go

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/signal"
)

func TestMemorySignalStoreInsertAndGet(t *testing.T) {
	store := NewMemorySignalStore()
	ctx := context.Background()

	sig := signal.DistressSignal{
		ID:        "sig-1",
		Latitude:  48.8566,
		Longitude: 2.3522,
		Status:    signal.StatusActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Insert(ctx, sig))

	got, err := store.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, sig, *got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, signal.ErrNotFound)
}

func TestMemorySignalStoreResolve(t *testing.T) {
	store := NewMemorySignalStore()
	ctx := context.Background()

	created := time.Now()
	require.NoError(t, store.Insert(ctx, signal.DistressSignal{
		ID:        "sig-1",
		Status:    signal.StatusActive,
		CreatedAt: created,
	}))

	resolvedAt := created.Add(time.Minute)
	got, already, err := store.Resolve(ctx, "sig-1", resolvedAt)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, signal.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, resolvedAt, *got.ResolvedAt)

	// Resolving again is a no-op success reporting the existing record.
	got, already, err = store.Resolve(ctx, "sig-1", resolvedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, signal.StatusResolved, got.Status)
	assert.Equal(t, resolvedAt, *got.ResolvedAt)

	_, _, err = store.Resolve(ctx, "missing", resolvedAt)
	assert.ErrorIs(t, err, signal.ErrNotFound)
}

func TestMemorySignalStoreListActiveOldestFirst(t *testing.T) {
	store := NewMemorySignalStore()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.Insert(ctx, signal.DistressSignal{ID: "newer", Status: signal.StatusActive, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Insert(ctx, signal.DistressSignal{ID: "oldest", Status: signal.StatusActive, CreatedAt: base}))
	require.NoError(t, store.Insert(ctx, signal.DistressSignal{ID: "resolved", Status: signal.StatusResolved, CreatedAt: base.Add(-time.Minute)}))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "oldest", active[0].ID)
	assert.Equal(t, "newer", active[1].ID)
}

func TestMemorySignalStoreResolvedStaysListedAsHistory(t *testing.T) {
	store := NewMemorySignalStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, signal.DistressSignal{ID: "sig-1", Status: signal.StatusActive, CreatedAt: time.Now()}))

	_, _, err := store.Resolve(ctx, "sig-1", time.Now())
	require.NoError(t, err)

	// Out of the active listing, but still readable for history.
	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := store.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, signal.StatusResolved, got.Status)
}
