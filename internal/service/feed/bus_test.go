// internal/service/feed/bus_test.go

package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/domain/feed"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus(BusConfig{SubscriberBuffer: 8}, nil)

	subA := bus.Subscribe(feed.StreamPresence)
	subB := bus.Subscribe(feed.StreamPresence)
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	bus.Publish(feed.StreamPresence, feed.KindInsert, "one")
	bus.Publish(feed.StreamPresence, feed.KindUpdate, "two")

	for _, sub := range []feed.Subscription{subA, subB} {
		first := <-sub.Events()
		second := <-sub.Events()
		assert.Equal(t, "one", first.Payload)
		assert.Equal(t, "two", second.Payload)
		assert.Equal(t, uint64(1), first.Sequence)
		assert.Equal(t, uint64(2), second.Sequence)
	}
}

func TestBusSequencePerStream(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)

	presenceSub := bus.Subscribe(feed.StreamPresence)
	alertSub := bus.Subscribe(feed.StreamAlert)
	defer presenceSub.Unsubscribe()
	defer alertSub.Unsubscribe()

	bus.Publish(feed.StreamPresence, feed.KindInsert, "p1")
	bus.Publish(feed.StreamAlert, feed.KindInsert, "a1")
	bus.Publish(feed.StreamPresence, feed.KindUpdate, "p2")

	p1 := <-presenceSub.Events()
	p2 := <-presenceSub.Events()
	a1 := <-alertSub.Events()

	// Sequences count independently per stream.
	assert.Equal(t, uint64(1), p1.Sequence)
	assert.Equal(t, uint64(2), p2.Sequence)
	assert.Equal(t, uint64(1), a1.Sequence)
}

func TestBusNoDeliveryBeforeSubscription(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)

	bus.Publish(feed.StreamPresence, feed.KindInsert, "missed")

	sub := bus.Subscribe(feed.StreamPresence)
	defer sub.Unsubscribe()

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected event before subscription: %v", event)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)

	sub := bus.Subscribe(feed.StreamDistressSignal)
	sub.Unsubscribe()
	sub.Unsubscribe()

	// Publishing after unsubscribe delivers nothing to the handle.
	bus.Publish(feed.StreamDistressSignal, feed.KindInsert, "late")

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBusNextAfterUnsubscribe(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)

	sub := bus.Subscribe(feed.StreamAlert)
	bus.Publish(feed.StreamAlert, feed.KindInsert, "buffered")
	sub.Unsubscribe()

	// Buffered events drain first, then the handle reports closed.
	event, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "buffered", event.Payload)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, feed.ErrSubscriptionClosed)
}

func TestBusNextRespectsContext(t *testing.T) {
	bus := NewBus(BusConfig{}, nil)

	sub := bus.Subscribe(feed.StreamPresence)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBusSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(BusConfig{SubscriberBuffer: 1}, nil)

	slow := bus.Subscribe(feed.StreamPresence)
	fast := bus.Subscribe(feed.StreamPresence)
	defer slow.Unsubscribe()
	defer fast.Unsubscribe()

	// The slow subscriber never drains; its buffer holds one event and
	// the rest are dropped for it alone.
	for i := 0; i < 3; i++ {
		bus.Publish(feed.StreamPresence, feed.KindUpdate, i)
	}

	var received []interface{}
	for i := 0; i < 3; i++ {
		select {
		case event := <-fast.Events():
			received = append(received, event.Payload)
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved by slow subscriber")
		}
	}
	assert.Equal(t, []interface{}{0, 1, 2}, received)

	slowSub := slow.(*subscription)
	assert.Equal(t, uint64(2), slowSub.Dropped())
}

func TestBusConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(BusConfig{SubscriberBuffer: 4}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(feed.StreamPresence, feed.KindUpdate, i)
		}
	}()

	// Churning subscribers while publishing must not panic or deadlock.
	for i := 0; i < 50; i++ {
		sub := bus.Subscribe(feed.StreamPresence)
		sub.Unsubscribe()
	}

	<-done
}
