// internal/adapter/storage/presence_memory_test.go

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/feed"
	"aegis/internal/domain/presence"
	feedservice "aegis/internal/service/feed"
)

func TestMemoryPresenceStoreUpsertAndGet(t *testing.T) {
	store := NewMemoryPresenceStore(nil)
	ctx := context.Background()

	loc := presence.UserLocation{
		UserID:      "u1",
		Latitude:    52.52,
		Longitude:   13.405,
		LastUpdated: time.Now(),
	}
	require.NoError(t, store.Upsert(ctx, loc))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, loc, *got)

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, presence.ErrNotFound)
}

func TestMemoryPresenceStoreRejectsEmptyUserID(t *testing.T) {
	store := NewMemoryPresenceStore(nil)

	err := store.Upsert(context.Background(), presence.UserLocation{LastUpdated: time.Now()})
	assert.ErrorIs(t, err, presence.ErrInvalidUserID)
}

func TestMemoryPresenceStoreLastWriterWins(t *testing.T) {
	store := NewMemoryPresenceStore(nil)
	ctx := context.Background()

	base := time.Now()
	newer := presence.UserLocation{UserID: "u1", Latitude: 1, Longitude: 1, LastUpdated: base.Add(time.Minute)}
	older := presence.UserLocation{UserID: "u1", Latitude: 2, Longitude: 2, LastUpdated: base}

	// The newer write lands first; the late-arriving older write must not
	// supersede it.
	require.NoError(t, store.Upsert(ctx, newer))
	require.NoError(t, store.Upsert(ctx, older))

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, newer, *got)
}

func TestMemoryPresenceStoreStaleWritePublishesNothing(t *testing.T) {
	bus := feedservice.NewBus(feedservice.BusConfig{}, nil)
	store := NewMemoryPresenceStore(bus)
	ctx := context.Background()

	sub := bus.Subscribe(feed.StreamPresence)
	defer sub.Unsubscribe()

	base := time.Now()
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "u1", LastUpdated: base.Add(time.Minute)}))
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "u1", LastUpdated: base}))

	first := <-sub.Events()
	assert.Equal(t, feed.KindInsert, first.Kind)

	select {
	case event := <-sub.Events():
		t.Fatalf("stale write published an event: %v", event)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMemoryPresenceStoreListAllOrderIsFirstSeen(t *testing.T) {
	store := NewMemoryPresenceStore(nil)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "a", LastUpdated: base}))
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "b", LastUpdated: base.Add(time.Second)}))

	// Updating "a" again must not move it behind "b".
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "a", LastUpdated: base.Add(2 * time.Second)}))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)
	assert.Equal(t, "b", all[1].UserID)
	assert.Equal(t, base.Add(2*time.Second), all[0].LastUpdated)
}

func TestMemoryPresenceStoreEventKinds(t *testing.T) {
	bus := feedservice.NewBus(feedservice.BusConfig{}, nil)
	store := NewMemoryPresenceStore(bus)
	ctx := context.Background()

	sub := bus.Subscribe(feed.StreamPresence)
	defer sub.Unsubscribe()

	base := time.Now()
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "u1", LastUpdated: base}))
	require.NoError(t, store.Upsert(ctx, presence.UserLocation{UserID: "u1", LastUpdated: base.Add(time.Second)}))

	first := <-sub.Events()
	second := <-sub.Events()

	assert.Equal(t, feed.KindInsert, first.Kind)
	assert.Equal(t, feed.KindUpdate, second.Kind)
	assert.Less(t, first.Sequence, second.Sequence)

	// The payload is a full record snapshot.
	payload, ok := second.Payload.(presence.UserLocation)
	require.True(t, ok)
	assert.Equal(t, "u1", payload.UserID)
}

func TestMemoryPresenceStoreConcurrentUpserts(t *testing.T) {
	store := NewMemoryPresenceStore(nil)
	ctx := context.Background()

	const users = 10
	const writesPerUser = 50

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			base := time.Now()
			for i := 0; i < writesPerUser; i++ {
				loc := presence.UserLocation{
					UserID:      userID,
					Latitude:    float64(i),
					Longitude:   float64(i),
					LastUpdated: base.Add(time.Duration(i) * time.Millisecond),
				}
				_ = store.Upsert(ctx, loc)
			}
		}(userID)
	}
	wg.Wait()

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, users)

	// Every record reflects its user's final write; lat and lng always
	// belong to the same write.
	for _, loc := range all {
		assert.Equal(t, float64(writesPerUser-1), loc.Latitude)
		assert.Equal(t, loc.Latitude, loc.Longitude)
	}
}
