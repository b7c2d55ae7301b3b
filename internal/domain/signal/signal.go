// internal/domain/signal/signal.go

package signal

import (
	"context"
	"errors"
	"time"

	"aegis/internal/domain/geo"
)

// ErrNotFound indicates a reference to an unknown distress signal id
var ErrNotFound = errors.New("distress signal not found")

// Status is the lifecycle state of a distress signal
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// DistressSignal is an emergency marker at a location, active until
// explicitly resolved. The id and CreatedAt are immutable; status only ever
// transitions active -> resolved.
type DistressSignal struct {
	ID         string     `json:"id"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Coordinates returns the signal's position as a geo position
func (s DistressSignal) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Store persists distress signals. Resolved signals are retained for
// history and only excluded from active listings.
type Store interface {
	// Insert stores a newly created signal.
	Insert(ctx context.Context, sig DistressSignal) error

	// Get returns a signal by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*DistressSignal, error)

	// Resolve transitions a signal to resolved at the given time. It
	// returns the record after the call and whether the signal was already
	// resolved. Resolving an already-resolved signal changes nothing.
	Resolve(ctx context.Context, id string, at time.Time) (*DistressSignal, bool, error)

	// ListActive returns active signals ordered by CreatedAt ascending,
	// oldest first.
	ListActive(ctx context.Context) ([]DistressSignal, error)
}
