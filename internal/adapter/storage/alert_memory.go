// internal/adapter/storage/alert_memory.go

package storage

import (
	"context"
	"sort"
	"sync"

	"aegis/internal/domain/alert"
)

// MemoryAlertStore is the in-process implementation of alert.Store. Alerts
// are immutable once inserted; expiry is evaluated lazily by consumers, so
// the store never mutates or deletes a record.
type MemoryAlertStore struct {
	mu      sync.RWMutex
	records map[string]alert.SafetyAlert
}

// NewMemoryAlertStore creates an empty in-memory safety alert store
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		records: make(map[string]alert.SafetyAlert),
	}
}

// Insert stores a newly created alert
func (s *MemoryAlertStore) Insert(ctx context.Context, a alert.SafetyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[a.ID] = a
	return nil
}

// Get returns an alert by id
func (s *MemoryAlertStore) Get(ctx context.Context, id string) (*alert.SafetyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.records[id]
	if !ok {
		return nil, alert.ErrNotFound
	}
	return &a, nil
}

// List returns all alerts, expired ones included, ordered by CreatedAt
// ascending
func (s *MemoryAlertStore) List(ctx context.Context) ([]alert.SafetyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]alert.SafetyAlert, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
