package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the per-subscriber channel capacity used by NewBroker.
const DefaultBufferSize = 64

// Broker delivers every published event to every live subscription.
// A subscriber whose buffer is full misses the event; Dropped counts how
// many deliveries were lost that way.
type Broker[T any] struct {
	mu      sync.RWMutex
	subs    map[chan Event[T]]func() bool // channel -> stop for its ctx hook
	closed  bool
	size    int
	dropped atomic.Int64
	now     func() time.Time
}

// NewBroker creates a broker with DefaultBufferSize.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](DefaultBufferSize)
}

// NewBrokerWithBuffer creates a broker whose subscription channels hold
// size events. A size below one is treated as one.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	if size < 1 {
		size = 1
	}
	return &Broker[T]{
		subs: make(map[chan Event[T]]func() bool),
		size: size,
		now:  time.Now,
	}
}

// Subscribe returns a channel receiving events published from now on. It
// is closed when ctx is done or the broker closes. Subscribing to a closed
// broker returns an already closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	ch := make(chan Event[T], b.size)
	b.subs[ch] = context.AfterFunc(ctx, func() { b.unsubscribe(ch) })
	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Publish delivers an event to every subscriber that has room for it.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	event := Event[T]{Type: eventType, Payload: payload, Timestamp: b.now()}
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close closes every subscription. Later publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch, stop := range b.subs {
		stop()
		close(ch)
	}
	b.subs = nil
}

// SubscriberCount returns the number of open subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}
