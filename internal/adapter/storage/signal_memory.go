// internal/adapter/storage/signal_memory.go

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"aegis/internal/domain/signal"
)

// MemorySignalStore is the in-process implementation of signal.Store.
// Status transitions are serialized per signal id under the store lock, so
// concurrent resolves of the same signal observe exactly one transition.
type MemorySignalStore struct {
	mu      sync.RWMutex
	records map[string]signal.DistressSignal
}

// NewMemorySignalStore creates an empty in-memory distress signal store
func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{
		records: make(map[string]signal.DistressSignal),
	}
}

// Insert stores a newly created signal
func (s *MemorySignalStore) Insert(ctx context.Context, sig signal.DistressSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sig.ID] = sig
	return nil
}

// Get returns a signal by id
func (s *MemorySignalStore) Get(ctx context.Context, id string) (*signal.DistressSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.records[id]
	if !ok {
		return nil, signal.ErrNotFound
	}
	return &sig, nil
}

// Resolve transitions a signal to resolved. Resolving an already-resolved
// signal changes nothing and reports the existing record.
func (s *MemorySignalStore) Resolve(ctx context.Context, id string, at time.Time) (*signal.DistressSignal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.records[id]
	if !ok {
		return nil, false, signal.ErrNotFound
	}
	if sig.Status == signal.StatusResolved {
		return &sig, true, nil
	}

	sig.Status = signal.StatusResolved
	sig.ResolvedAt = &at
	s.records[id] = sig

	return &sig, false, nil
}

// ListActive returns active signals ordered by CreatedAt ascending, oldest
// first, so responders see the longest-standing emergencies first
func (s *MemorySignalStore) ListActive(ctx context.Context) ([]signal.DistressSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []signal.DistressSignal
	for _, sig := range s.records {
		if sig.Status == signal.StatusActive {
			out = append(out, sig)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
