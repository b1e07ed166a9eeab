// Package broadcast implements a bounded multi-consumer channel.
//
// Every subscriber has its own buffer. Publish never blocks: when a
// subscriber's buffer is full its oldest unread value is discarded to make
// room, so a slow consumer loses history instead of stalling the publisher.
package broadcast

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shelepuginivan/statusbar/internal/metrics"
)

// Hub fans published values out to all current subscribers.
type Hub[T any] struct {
	mu      sync.Mutex
	subs    map[*Subscription[T]]struct{}
	size    int
	closed  bool
	dropped prometheus.Counter
}

// Subscription is one receiver of a [Hub].
type Subscription[T any] struct {
	hub *Hub[T]
	ch  chan T
}

// New returns a hub whose subscribers buffer up to size values. Name labels
// the hub's dropped-values metric.
func New[T any](name string, size int) *Hub[T] {
	if size < 1 {
		size = 1
	}

	return &Hub[T]{
		subs:    make(map[*Subscription[T]]struct{}),
		size:    size,
		dropped: metrics.BroadcastDropped.WithLabelValues(name),
	}
}

// Subscribe registers a new receiver. It only observes values published
// after Subscribe returns. On a closed hub the returned subscription is
// already closed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription[T]{hub: h, ch: make(chan T, h.size)}
	if h.closed {
		close(sub.ch)
		return sub
	}

	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers v to every subscriber and returns how many received it.
// Zero receivers is not an error.
func (h *Hub[T]) Publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	for sub := range h.subs {
		h.deliver(sub, v)
	}

	return len(h.subs)
}

// deliver sends v to sub, discarding the oldest buffered value when full.
// Must be called with h.mu held.
func (h *Hub[T]) deliver(sub *Subscription[T], v T) {
	for {
		select {
		case sub.ch <- v:
			return
		default:
		}

		select {
		case <-sub.ch:
			h.dropped.Inc()
		default:
		}
	}
}

// Len returns the number of current subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Close closes every subscription. Values already buffered can still be
// received. Later publishes are ignored.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// C returns the channel values are received on. It is closed when the
// subscription or the hub is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription[T]) Close() {
	h := s.hub

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; !ok {
		return
	}

	delete(h.subs, s)
	close(s.ch)
}
