// internal/service/alert/manager.go

package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/feed"
)

// CreateAlertInput carries the caller-supplied fields of a new alert
type CreateAlertInput struct {
	Message         string
	Severity        alert.Severity
	Latitude        float64
	Longitude       float64
	LocationAddress string

	// RadiusMeters defaults to alert.DefaultRadiusMeters when zero.
	RadiusMeters float64

	// ExpiresAt is optional; nil means the alert never expires.
	ExpiresAt *time.Time
}

// Manager owns safety alert creation and listing. Alerts are immutable
// after creation; expiry is evaluated lazily against ExpiresAt at read
// time, never by background deletion.
type Manager struct {
	store  alert.Store
	bus    feed.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a safety alert manager
func NewManager(store alert.Store, bus feed.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		store:  store,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a new broadcast alert
func (m *Manager) Create(ctx context.Context, input CreateAlertInput) (*alert.SafetyAlert, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, alert.ErrEmptyMessage
	}
	if !input.Severity.Valid() {
		return nil, fmt.Errorf("%w: %q", alert.ErrInvalidSeverity, input.Severity)
	}

	radius := input.RadiusMeters
	if radius <= 0 {
		radius = alert.DefaultRadiusMeters
	}

	a := alert.SafetyAlert{
		ID:              uuid.New().String(),
		Message:         input.Message,
		Severity:        input.Severity,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		LocationAddress: input.LocationAddress,
		RadiusMeters:    radius,
		CreatedAt:       m.now(),
		ExpiresAt:       input.ExpiresAt,
	}

	if err := m.store.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("error saving safety alert: %w", err)
	}

	if m.bus != nil {
		m.bus.Publish(feed.StreamAlert, feed.KindInsert, a)
	}

	m.logger.Info("safety alert created",
		zap.String("alert_id", a.ID),
		zap.String("severity", string(a.Severity)),
		zap.Float64("radius_m", a.RadiusMeters),
	)

	return &a, nil
}

// Get returns an alert by id
func (m *Manager) Get(ctx context.Context, id string) (*alert.SafetyAlert, error) {
	return m.store.Get(ctx, id)
}

// List returns all alerts, expired ones included
func (m *Manager) List(ctx context.Context) ([]alert.SafetyAlert, error) {
	return m.store.List(ctx)
}

// ListActive returns alerts live at the given time, ordered for display
// precedence: danger before warning before info, newest first within a
// severity.
func (m *Manager) ListActive(ctx context.Context, now time.Time) ([]alert.SafetyAlert, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []alert.SafetyAlert
	for _, a := range all {
		if a.IsActive(now) {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}
