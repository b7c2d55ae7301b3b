// internal/service/feed/bus.go

package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"aegis/internal/domain/feed"
)

// DefaultSubscriberBuffer is the per-subscriber queue depth used when the
// bus is constructed with a non-positive buffer size
const DefaultSubscriberBuffer = 256

// BusConfig contains configuration for the in-process change-feed bus
type BusConfig struct {
	// SubscriberBuffer is the queue depth of each subscriber's channel.
	SubscriberBuffer int
}

// Bus is the in-process implementation of feed.Bus. Every subscriber owns
// an independent buffered queue, so one slow consumer never blocks delivery
// to the others; once a queue is full, new events for that subscriber are
// dropped and counted. Sequence numbers are assigned per stream under the
// bus lock, so a given subscriber always observes non-decreasing sequences.
type Bus struct {
	logger *zap.Logger
	buffer int

	mu          sync.Mutex
	sequences   map[feed.Stream]uint64
	subscribers map[feed.Stream]map[*subscription]struct{}
}

// NewBus creates a new in-process change-feed bus
func NewBus(cfg BusConfig, logger *zap.Logger) *Bus {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bus{
		logger:      logger,
		buffer:      cfg.SubscriberBuffer,
		sequences:   make(map[feed.Stream]uint64),
		subscribers: make(map[feed.Stream]map[*subscription]struct{}),
	}
}

// Subscribe registers a new subscriber on a stream. The returned handle is
// owned by the caller and must be released with Unsubscribe.
func (b *Bus) Subscribe(stream feed.Stream) feed.Subscription {
	sub := &subscription{
		bus:    b,
		stream: stream,
		events: make(chan feed.ChangeEvent, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[stream] == nil {
		b.subscribers[stream] = make(map[*subscription]struct{})
	}
	b.subscribers[stream][sub] = struct{}{}

	return sub
}

// Publish assigns the next sequence number on the stream and fans the event
// out to all current subscribers. Delivery to each subscriber is
// non-blocking; a full queue drops the event for that subscriber only.
func (b *Bus) Publish(stream feed.Stream, kind feed.Kind, payload interface{}) feed.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequences[stream]++
	event := feed.ChangeEvent{
		Stream:      stream,
		Kind:        kind,
		Sequence:    b.sequences[stream],
		Payload:     payload,
		PublishedAt: time.Now(),
	}

	for sub := range b.subscribers[stream] {
		select {
		case sub.events <- event:
		default:
			dropped := atomic.AddUint64(&sub.dropped, 1)
			b.logger.Warn("change-feed subscriber queue full, dropping event",
				zap.String("stream", string(stream)),
				zap.Uint64("sequence", event.Sequence),
				zap.Uint64("dropped_total", dropped),
			)
		}
	}

	return event
}

// remove detaches a subscription and closes its channel. Holding the bus
// lock here guarantees no Publish is mid-delivery, so once remove returns
// nothing more is sent on the channel.
func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs := b.subscribers[sub.stream]; subs != nil {
		delete(subs, sub)
	}
	close(sub.events)
}

// subscription implements feed.Subscription
type subscription struct {
	bus     *Bus
	stream  feed.Stream
	events  chan feed.ChangeEvent
	dropped uint64
	once    sync.Once
}

// Events returns the channel events are delivered on
func (s *subscription) Events() <-chan feed.ChangeEvent {
	return s.events
}

// Next blocks until the next event, the subscription is closed, or the
// context is cancelled
func (s *subscription) Next(ctx context.Context) (feed.ChangeEvent, error) {
	select {
	case event, ok := <-s.events:
		if !ok {
			return feed.ChangeEvent{}, feed.ErrSubscriptionClosed
		}
		return event, nil
	case <-ctx.Done():
		return feed.ChangeEvent{}, ctx.Err()
	}
}

// Unsubscribe releases the handle. It is idempotent; once it returns, no
// further events are delivered.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Dropped returns how many events were discarded for this subscriber
// because its queue was full
func (s *subscription) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}
