// internal/domain/presence/presence.go

package presence

import (
	"context"
	"errors"
	"time"

	"aegis/internal/domain/geo"
)

var (
	// ErrNotFound indicates no presence record exists for the user
	ErrNotFound = errors.New("presence record not found")

	// ErrStorageUnavailable indicates the underlying persistence call failed
	ErrStorageUnavailable = errors.New("presence storage unavailable")

	// ErrInvalidUserID indicates an empty or otherwise unusable user id
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrLocationUnavailable indicates the location source has no fix yet
	ErrLocationUnavailable = errors.New("location unavailable")
)

// UserLocation is the last known position of a single user. There is at
// most one live record per user id; a newer write supersedes an older one
// by LastUpdated regardless of arrival order.
type UserLocation struct {
	UserID      string    `json:"user_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	LastUpdated time.Time `json:"last_updated"`
}

// Coordinates returns the location as a geo position
func (l UserLocation) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Store is the single source of truth for current user positions.
// Implementations serialize conflicting writes per key, apply
// last-writer-wins by LastUpdated and keep ListAll in first-seen order.
// Records are never hard-deleted; consumers infer staleness from
// LastUpdated age.
type Store interface {
	// Upsert writes a user's location. A write older than the stored
	// record (by LastUpdated) is ignored. A successful write that changes
	// state emits a ChangeEvent on the presence stream.
	Upsert(ctx context.Context, loc UserLocation) error

	// Get returns the last known location for a user, or ErrNotFound.
	Get(ctx context.Context, userID string) (*UserLocation, error)

	// ListAll returns every record in first-seen insertion order. Repeated
	// upserts of the same user do not move it.
	ListAll(ctx context.Context) ([]UserLocation, error)
}

// LocationSource provides a device's best-effort current position. It is
// polled on each publish tick; ErrLocationUnavailable means the tick should
// be skipped.
type LocationSource interface {
	CurrentLocation(ctx context.Context) (geo.Coordinates, error)
}
