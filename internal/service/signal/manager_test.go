// internal/service/signal/manager_test.go

package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/adapter/storage"
	"aegis/internal/domain/feed"
	"aegis/internal/domain/geo"
	"aegis/internal/domain/signal"
	feedservice "aegis/internal/service/feed"
)

func newTestManager(t *testing.T) (*Manager, *feedservice.Bus) {
	t.Helper()
	bus := feedservice.NewBus(feedservice.BusConfig{}, nil)
	return NewManager(storage.NewMemorySignalStore(), bus, nil), bus
}

func TestManagerCreate(t *testing.T) {
	manager, bus := newTestManager(t)
	ctx := context.Background()

	sub := bus.Subscribe(feed.StreamDistressSignal)
	defer sub.Unsubscribe()

	sig, err := manager.Create(ctx, 40.0, -73.9)
	require.NoError(t, err)
	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, signal.StatusActive, sig.Status)
	assert.False(t, sig.CreatedAt.IsZero())

	event := <-sub.Events()
	assert.Equal(t, feed.KindInsert, event.Kind)
	payload, ok := event.Payload.(signal.DistressSignal)
	require.True(t, ok)
	assert.Equal(t, sig.ID, payload.ID)
}

func TestManagerCreateRejectsInvalidCoordinates(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, 91.0, 0)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = manager.Create(ctx, 0, -181.0)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestManagerCreateGeneratesUniqueIDs(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		sig, err := manager.Create(ctx, 1, 1)
		require.NoError(t, err)
		assert.False(t, seen[sig.ID], "duplicate signal id %s", sig.ID)
		seen[sig.ID] = true
	}
}

func TestManagerResolveIsIdempotent(t *testing.T) {
	manager, bus := newTestManager(t)
	ctx := context.Background()

	sig, err := manager.Create(ctx, 1, 1)
	require.NoError(t, err)

	sub := bus.Subscribe(feed.StreamDistressSignal)
	defer sub.Unsubscribe()

	resolved, already, err := manager.Resolve(ctx, sig.ID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, signal.StatusResolved, resolved.Status)

	resolved, already, err = manager.Resolve(ctx, sig.ID)
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, signal.StatusResolved, resolved.Status)

	// Exactly one update event reaches the bus, carrying the full record.
	event := <-sub.Events()
	assert.Equal(t, feed.KindUpdate, event.Kind)
	payload, ok := event.Payload.(signal.DistressSignal)
	require.True(t, ok)
	assert.Equal(t, signal.StatusResolved, payload.Status)

	select {
	case extra := <-sub.Events():
		t.Fatalf("second resolve published an event: %v", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestManagerResolveUnknownID(t *testing.T) {
	manager, _ := newTestManager(t)

	_, _, err := manager.Resolve(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, signal.ErrNotFound)

	_, _, err = manager.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, signal.ErrNotFound)
}

func TestManagerListActiveUntilResolved(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	// Control creation times so the ordering assertion is deterministic.
	base := time.Now()
	manager.now = func() time.Time { return base }
	first, err := manager.Create(ctx, 1, 1)
	require.NoError(t, err)

	manager.now = func() time.Time { return base.Add(time.Minute) }
	second, err := manager.Create(ctx, 2, 2)
	require.NoError(t, err)

	// An unresolved signal stays active no matter how much time passes;
	// there is no implicit expiry.
	active, err := manager.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID, "oldest signal listed first")

	_, _, err = manager.Resolve(ctx, first.ID)
	require.NoError(t, err)

	active, err = manager.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}
