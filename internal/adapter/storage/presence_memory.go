// internal/adapter/storage/presence_memory.go

package storage

import (
	"context"
	"sync"

	"aegis/internal/domain/feed"
	"aegis/internal/domain/presence"
)

// MemoryPresenceStore is the in-process implementation of presence.Store.
// Writes to the same user id are serialized by a per-key mutex, and the
// store mutation and its change-feed publication happen under that same
// lock, so a store update is never observable without its matching event
// having been enqueued. Iteration order of ListAll is first-seen insertion
// order and is unaffected by later upserts.
type MemoryPresenceStore struct {
	bus feed.Bus

	mu      sync.RWMutex
	records map[string]presence.UserLocation
	order   []string

	keyMu sync.Mutex
	keys  map[string]*sync.Mutex
}

// NewMemoryPresenceStore creates an empty in-memory presence store. The
// bus may be nil, in which case no events are published.
func NewMemoryPresenceStore(bus feed.Bus) *MemoryPresenceStore {
	return &MemoryPresenceStore{
		bus:     bus,
		records: make(map[string]presence.UserLocation),
		keys:    make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing writes for a single user id
func (s *MemoryPresenceStore) keyLock(userID string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	lock, ok := s.keys[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.keys[userID] = lock
	}
	return lock
}

// Upsert writes a user's location, applying last-writer-wins by
// LastUpdated. A stale write is silently ignored and publishes nothing.
func (s *MemoryPresenceStore) Upsert(ctx context.Context, loc presence.UserLocation) error {
	if loc.UserID == "" {
		return presence.ErrInvalidUserID
	}

	lock := s.keyLock(loc.UserID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	existing, seen := s.records[loc.UserID]
	if seen && existing.LastUpdated.After(loc.LastUpdated) {
		s.mu.Unlock()
		return nil
	}
	s.records[loc.UserID] = loc
	if !seen {
		s.order = append(s.order, loc.UserID)
	}
	s.mu.Unlock()

	if s.bus != nil {
		kind := feed.KindUpdate
		if !seen {
			kind = feed.KindInsert
		}
		s.bus.Publish(feed.StreamPresence, kind, loc)
	}

	return nil
}

// Get returns the last known location for a user
func (s *MemoryPresenceStore) Get(ctx context.Context, userID string) (*presence.UserLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.records[userID]
	if !ok {
		return nil, presence.ErrNotFound
	}
	return &loc, nil
}

// ListAll returns every record in first-seen insertion order
func (s *MemoryPresenceStore) ListAll(ctx context.Context) ([]presence.UserLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]presence.UserLocation, 0, len(s.order))
	for _, userID := range s.order {
		out = append(out, s.records[userID])
	}
	return out, nil
}
