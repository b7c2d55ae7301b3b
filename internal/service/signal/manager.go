// internal/service/signal/manager.go

package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aegis/internal/domain/feed"
	"aegis/internal/domain/geo"
	"aegis/internal/domain/signal"
)

// Manager owns the distress signal lifecycle: creation, resolution and
// active listings. Every mutation publishes a ChangeEvent carrying the full
// updated record on the distress-signal stream.
type Manager struct {
	store  signal.Store
	bus    feed.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a distress signal manager
func NewManager(store signal.Store, bus feed.Bus, logger *zap.Logger) *Manager {
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

// Create registers a new active distress signal at a location
func (m *Manager) Create(ctx context.Context, lat, lng float64) (*signal.DistressSignal, error) {
	coords := geo.Coordinates{Latitude: lat, Longitude: lng}
	if err := coords.Validate(); err != nil {
		return nil, err
	}

	sig := signal.DistressSignal{
		ID:        uuid.New().String(),
		Latitude:  lat,
		Longitude: lng,
		Status:    signal.StatusActive,
		CreatedAt: m.now(),
	}

	if err := m.store.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("error saving distress signal: %w", err)
	}

	if m.bus != nil {
		m.bus.Publish(feed.StreamDistressSignal, feed.KindInsert, sig)
	}

	m.logger.Info("distress signal created",
		zap.String("signal_id", sig.ID),
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lng),
	)

	return &sig, nil
}

// Resolve transitions a signal to resolved. Resolution is idempotent: a
// second call succeeds, reports alreadyResolved and publishes nothing, so
// exactly one update event reaches the bus per signal.
func (m *Manager) Resolve(ctx context.Context, id string) (*signal.DistressSignal, bool, error) {
	if id == "" {
		return nil, false, signal.ErrNotFound
	}

	sig, alreadyResolved, err := m.store.Resolve(ctx, id, m.now())
	if err != nil {
		return nil, false, err
	}

	if !alreadyResolved {
		if m.bus != nil {
			m.bus.Publish(feed.StreamDistressSignal, feed.KindUpdate, *sig)
		}
		m.logger.Info("distress signal resolved", zap.String("signal_id", id))
	}

	return sig, alreadyResolved, nil
}

// Get returns a signal by id
func (m *Manager) Get(ctx context.Context, id string) (*signal.DistressSignal, error) {
	return m.store.Get(ctx, id)
}

// ListActive returns active signals, oldest first
func (m *Manager) ListActive(ctx context.Context) ([]signal.DistressSignal, error) {
	return m.store.ListActive(ctx)
}
