// internal/domain/feed/feed.go

package feed

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionClosed indicates an operation on a handle that has already
// been unsubscribed
var ErrSubscriptionClosed = errors.New("subscription closed")

// Stream identifies a named logical change stream
type Stream string

const (
	// StreamPresence carries user location inserts/updates
	StreamPresence Stream = "presence"

	// StreamDistressSignal carries distress signal inserts/updates
	StreamDistressSignal Stream = "distress-signal"

	// StreamAlert carries safety alert inserts/updates
	StreamAlert Stream = "alert"
)

// Kind identifies the type of mutation an event describes
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeEvent is a notification of a single mutation on a stream. The
// payload is a snapshot copy of the full entity after the mutation, never a
// delta, so subscribers do not need to merge partial state.
type ChangeEvent struct {
	Stream      Stream      `json:"stream"`
	Kind        Kind        `json:"kind"`
	Sequence    uint64      `json:"sequence"`
	Payload     interface{} `json:"payload"`
	PublishedAt time.Time   `json:"published_at"`
}

// Subscription is a live handle to a stream's events, owned by the caller.
// The caller must call Unsubscribe when done; after Unsubscribe returns no
// further events are delivered.
type Subscription interface {
	// Events returns the channel events are delivered on. The channel is
	// closed when the subscription is unsubscribed.
	Events() <-chan ChangeEvent

	// Next blocks until the next event is available, the subscription is
	// closed, or the context is cancelled.
	Next(ctx context.Context) (ChangeEvent, error)

	// Unsubscribe releases the handle. It is idempotent.
	Unsubscribe()
}

// Bus delivers change events from the owning stores/managers to any number
// of subscribers. Each subscriber receives its own independent sequence; a
// slow subscriber never blocks delivery to others. Events published before
// subscription are not replayed.
type Bus interface {
	// Subscribe registers a new subscriber on a stream.
	Subscribe(stream Stream) Subscription

	// Publish assigns the next sequence number on the stream and fans the
	// event out to all current subscribers. It never blocks on a subscriber.
	Publish(stream Stream, kind Kind, payload interface{}) ChangeEvent
}
