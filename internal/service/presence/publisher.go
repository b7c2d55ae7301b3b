// internal/service/presence/publisher.go

package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aegis/internal/domain/presence"
)

// DefaultPublishInterval is the cadence between location publications
const DefaultPublishInterval = 15 * time.Second

// PublisherConfig contains configuration for a location publisher
type PublisherConfig struct {
	// PublishInterval is the fixed tick cadence. Zero means
	// DefaultPublishInterval.
	PublishInterval time.Duration
}

// Publisher owns one device's current coordinates and pushes them to the
// presence store once immediately at start and then on a fixed cadence. A
// tick with no available location is skipped, not retried mid-interval; a
// tick that fails on storage is logged and the next tick is the retry.
type Publisher struct {
	store    presence.Store
	source   presence.LocationSource
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher creates a location publisher for a store and source
func NewPublisher(store presence.Store, source presence.LocationSource, cfg PublisherConfig, logger *zap.Logger) *Publisher {
	interval := cfg.PublishInterval
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{
		store:    store,
		source:   source,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start begins publishing for a user. It fails with ErrInvalidUserID when
// the user id is empty and refuses to start twice.
func (p *Publisher) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return presence.ErrInvalidUserID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("publisher already started for user %s", userID)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(ctx, userID, done)

	return nil
}

// Stop halts publishing. Once it returns, no further upserts are issued.
// It is idempotent.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run ticks until the context is cancelled
func (p *Publisher) run(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// One publication immediately at start, then on each tick.
	p.publishOnce(ctx, userID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx, userID)
		}
	}
}

// publishOnce reads the source and upserts one location record
func (p *Publisher) publishOnce(ctx context.Context, userID string) {
	if ctx.Err() != nil {
		return
	}

	coords, err := p.source.CurrentLocation(ctx)
	if err != nil {
		if !errors.Is(err, presence.ErrLocationUnavailable) {
			p.logger.Debug("location source error, skipping tick",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return
	}

	loc := presence.UserLocation{
		UserID:      userID,
		Latitude:    coords.Latitude,
		Longitude:   coords.Longitude,
		LastUpdated: p.now(),
	}

	if err := p.store.Upsert(ctx, loc); err != nil {
		// Non-fatal: the next tick is the retry.
		p.logger.Warn("presence upsert failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
