// internal/service/feed/relay.go

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"aegis/internal/domain/feed"
)

// RelayConfig contains configuration for the NATS relay
type RelayConfig struct {
	// SubjectPrefix is prepended to the stream name to form the NATS
	// subject, e.g. "feed" yields "feed.presence".
	SubjectPrefix string

	// Streams lists the streams to mirror. Empty means all three core
	// streams.
	Streams []feed.Stream
}

// Relay mirrors change-feed events onto NATS subjects so that subscribers
// in other processes can follow the same streams. A relay is itself just
// another bus subscriber; it never affects delivery to in-process
// consumers.
type Relay struct {
	bus    feed.Bus
	conn   *nats.Conn
	config RelayConfig
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	subs   []feed.Subscription
	wg     sync.WaitGroup
}

// NewRelay creates a new relay from the bus to a NATS connection
func NewRelay(bus feed.Bus, conn *nats.Conn, config RelayConfig, logger *zap.Logger) *Relay {
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "feed"
	}
	if len(config.Streams) == 0 {
		config.Streams = []feed.Stream{
			feed.StreamPresence,
			feed.StreamDistressSignal,
			feed.StreamAlert,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Relay{
		bus:    bus,
		conn:   conn,
		config: config,
		logger: logger,
	}
}

// Start subscribes to the configured streams and begins forwarding
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return fmt.Errorf("relay already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, stream := range r.config.Streams {
		sub := r.bus.Subscribe(stream)
		r.subs = append(r.subs, sub)

		r.wg.Add(1)
		go r.forward(ctx, stream, sub)
	}

	r.logger.Info("change-feed relay started",
		zap.String("subject_prefix", r.config.SubjectPrefix),
		zap.Int("streams", len(r.config.Streams)),
	)

	return nil
}

// Stop unsubscribes from the bus and waits for in-flight forwards
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.cancel = nil
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
	r.mu.Unlock()

	r.wg.Wait()
}

// forward publishes each bus event for a stream as JSON on its subject
func (r *Relay) forward(ctx context.Context, stream feed.Stream, sub feed.Subscription) {
	defer r.wg.Done()

	subject := fmt.Sprintf("%s.%s", r.config.SubjectPrefix, stream)

	for {
		event, err := sub.Next(ctx)
		if err != nil {
			return
		}

		data, err := json.Marshal(event)
		if err != nil {
			r.logger.Warn("failed to encode change event",
				zap.String("stream", string(stream)),
				zap.Error(err),
			)
			continue
		}

		if err := r.conn.Publish(subject, data); err != nil {
			r.logger.Warn("failed to publish change event to NATS",
				zap.String("subject", subject),
				zap.Uint64("sequence", event.Sequence),
				zap.Error(err),
			)
		}
	}
}
