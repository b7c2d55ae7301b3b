// internal/service/presence/publisher_test.go

package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/geo"
	"aegis/internal/domain/presence"
)

// stubSource serves a fixed position, optionally unavailable
type stubSource struct {
	mu          sync.Mutex
	coords      geo.Coordinates
	unavailable bool
}

func (s *stubSource) CurrentLocation(ctx context.Context) (geo.Coordinates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return geo.Coordinates{}, presence.ErrLocationUnavailable
	}
	return s.coords, nil
}

func (s *stubSource) setUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

// recordingStore counts upserts and remembers the last one
type recordingStore struct {
	mu      sync.Mutex
	upserts []presence.UserLocation
	err     error
}

func (s *recordingStore) Upsert(ctx context.Context, loc presence.UserLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, loc)
	return nil
}

func (s *recordingStore) Get(ctx context.Context, userID string) (*presence.UserLocation, error) {
	return nil, presence.ErrNotFound
}

func (s *recordingStore) ListAll(ctx context.Context) ([]presence.UserLocation, error) {
	return nil, nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func TestPublisherRejectsEmptyUserID(t *testing.T) {
	pub := NewPublisher(&recordingStore{}, &stubSource{}, PublisherConfig{}, nil)

	err := pub.Start(context.Background(), "")
	assert.ErrorIs(t, err, presence.ErrInvalidUserID)
}

func TestPublisherPublishesImmediatelyAndOnTicks(t *testing.T) {
	store := &recordingStore{}
	source := &stubSource{coords: geo.Coordinates{Latitude: 1, Longitude: 2}}
	pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 20 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	defer pub.Stop()

	// One immediate publication, then one per tick.
	require.Eventually(t, func() bool { return store.count() >= 3 }, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, loc := range store.upserts {
		assert.Equal(t, "u1", loc.UserID)
		assert.Equal(t, 1.0, loc.Latitude)
		assert.Equal(t, 2.0, loc.Longitude)
	}
}

func TestPublisherTimestampsAreMonotonic(t *testing.T) {
	store := &recordingStore{}
	source := &stubSource{}
	pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	require.Eventually(t, func() bool { return store.count() >= 4 }, time.Second, 5*time.Millisecond)
	pub.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	for i := 1; i < len(store.upserts); i++ {
		assert.False(t, store.upserts[i].LastUpdated.Before(store.upserts[i-1].LastUpdated))
	}
}

func TestPublisherSkipsUnavailableTicks(t *testing.T) {
	store := &recordingStore{}
	source := &stubSource{unavailable: true}
	pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	defer pub.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.count())

	// Once the source has a fix, publishing resumes on the next tick.
	source.setUnavailable(false)
	require.Eventually(t, func() bool { return store.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestPublisherContinuesAfterStorageFailure(t *testing.T) {
	store := &recordingStore{err: presence.ErrStorageUnavailable}
	source := &stubSource{}
	pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	defer pub.Stop()

	// Failing ticks are non-fatal; once storage recovers, the next tick
	// succeeds.
	time.Sleep(35 * time.Millisecond)
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	require.Eventually(t, func() bool { return store.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestPublisherStopHaltsUpserts(t *testing.T) {
	store := &recordingStore{}
	source := &stubSource{}
	pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	require.Eventually(t, func() bool { return store.count() >= 2 }, time.Second, 5*time.Millisecond)

	pub.Stop()
	countAtStop := store.count()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, countAtStop, store.count(), "no upserts after Stop returns")

	// Stop is idempotent.
	pub.Stop()
}

func TestPublisherDoesNotStartTwice(t *testing.T) {
	store := &recordingStore{}
	pub := NewPublisher(store, &stubSource{}, PublisherConfig{PublishInterval: 10 * time.Millisecond}, nil)

	require.NoError(t, pub.Start(context.Background(), "u1"))
	defer pub.Stop()

	assert.Error(t, pub.Start(context.Background(), "u1"))
}

func TestPublisherStartStopLoopDoesNotLeak(t *testing.T) {
	store := &recordingStore{}
	source := &stubSource{}

	// Repeated start/stop cycles must tear down cleanly each time.
	for i := 0; i < 20; i++ {
		pub := NewPublisher(store, source, PublisherConfig{PublishInterval: 5 * time.Millisecond}, nil)
		require.NoError(t, pub.Start(context.Background(), "u1"))
		pub.Stop()
	}
}
