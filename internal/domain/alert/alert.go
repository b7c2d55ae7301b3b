// internal/domain/alert/alert.go

package alert

import (
	"context"
	"errors"
	"time"

	"aegis/internal/domain/geo"
)

var (
	// ErrNotFound indicates a reference to an unknown alert id
	ErrNotFound = errors.New("safety alert not found")

	// ErrInvalidSeverity indicates an unrecognized severity value
	ErrInvalidSeverity = errors.New("invalid alert severity")

	// ErrEmptyMessage indicates an alert with no message text
	ErrEmptyMessage = errors.New("alert message must not be empty")
)

// DefaultRadiusMeters is used when an alert is created without a radius
const DefaultRadiusMeters = 500.0

// Severity classifies a safety alert for display precedence
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Valid reports whether the severity is one of the known values
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityDanger:
		return true
	}
	return false
}

// Rank orders severities for display precedence: danger > warning > info
func (s Severity) Rank() int {
	switch s {
	case SeverityDanger:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// SafetyAlert is a broadcast, time-bounded, severity-tagged notice tied to
// a location and radius. Expiry is evaluated lazily from ExpiresAt; the
// record itself is never mutated to reflect it.
type SafetyAlert struct {
	ID              string     `json:"id"`
	Message         string     `json:"message"`
	Severity        Severity   `json:"severity"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	LocationAddress string     `json:"location_address,omitempty"`
	RadiusMeters    float64    `json:"radius"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Coordinates returns the alert's position as a geo position
func (a SafetyAlert) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: a.Latitude, Longitude: a.Longitude}
}

// IsActive reports whether the alert is live at the given time. An alert
// with no expiry never expires.
func (a SafetyAlert) IsActive(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Store persists safety alerts
type Store interface {
	// Insert stores a newly created alert.
	Insert(ctx context.Context, a SafetyAlert) error

	// Get returns an alert by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*SafetyAlert, error)

	// List returns all alerts, expired ones included, ordered by CreatedAt
	// ascending.
	List(ctx context.Context) ([]SafetyAlert, error)
}
