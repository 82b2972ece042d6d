// Package eventbus carries host notifications from the session actors
// to any number of subscribers.
package eventbus

import (
	"sync"

	"github.com/cskr/pubsub/v2"
)

// Topic represents a unique event topic.
type Topic interface {
	String() string
	Value() uint
}

// Bus is a topic based publish/subscribe bus.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	ps *pubsub.PubSub[uint, any]

	closed bool
	mu     sync.RWMutex
}

// Subscription holds a subscription to a single topic.
type Subscription struct {
	C <-chan any

	unsub func()
	once  *sync.Once
}

var defaultBus = New(16)

// New returns a new bus, where every subscriber channel has the provided capacity.
func New(capacity int) *Bus {
	return &Bus{ps: pubsub.New[uint, any](capacity)}
}

// Default returns the process-wide bus.
func Default() *Bus {
	return defaultBus
}

// Publish publishes data to all subscribers of the topic.
func (b *Bus) Publish(topic Topic, data any) {
	if topic == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.ps.TryPub(data, topic.Value())
}

// Subscribe subscribes to a topic. If the bus is closed, the returned
// subscription channel is already closed.
func (b *Bus) Subscribe(topic Topic) Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || topic == nil {
		ch := make(chan any)
		close(ch)

		return Subscription{C: ch, once: &sync.Once{}}
	}

	ch := b.ps.Sub(topic.Value())

	return Subscription{
		C:    ch,
		once: &sync.Once{},
		unsub: func() {
			go b.ps.Unsub(ch, topic.Value())
		},
	}
}

// Close shuts the bus down and closes every subscription channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.ps.Shutdown()
}

// Unsubscribe cancels the subscription.
func (s Subscription) Unsubscribe() {
	if s.unsub == nil || s.once == nil {
		return
	}

	s.once.Do(s.unsub)
}

// Active reports whether the subscription can receive events.
func (s Subscription) Active() bool {
	return s.unsub != nil
}
