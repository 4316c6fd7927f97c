package hub

import (
	"sync"

	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
)

// DefaultBuffer is the per-subscriber event buffer.
const DefaultBuffer = 64

// Hub fans committed update events out to all subscribed connections.
// Publish order is preserved per subscriber (FIFO); because every mutation
// publishes while holding the store write lock, publish order equals
// commit order process-wide.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

// Subscription is one connection's view of the event stream. Events()
// yields every event published after the subscription point; there is no
// history replay. If the subscriber falls behind the buffer the channel is
// closed and Lagged reports true: missing updates silently is not an
// option, the client has no other way to detect staleness.
type Subscription struct {
	hub    *Hub
	ch     chan protocol.Update
	lagged bool
	closed bool
}

// New creates a hub with the given per-subscriber buffer capacity.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{hub: h, ch: make(chan protocol.Update, h.buffer)}
	h.subs[sub] = struct{}{}
	return sub
}

// Publish delivers event to every live subscriber without blocking. A
// subscriber whose buffer is full is marked lagged and its channel closed;
// it receives no further events.
func (h *Hub) Publish(event protocol.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.UpdatesPublished.Inc()
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			sub.lagged = true
			sub.closed = true
			close(sub.ch)
			delete(h.subs, sub)
			metrics.ConnectionsLagged.Inc()
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Events returns the receive channel. It is closed when the subscription
// is cancelled or has lagged; check Lagged to distinguish the two.
func (s *Subscription) Events() <-chan protocol.Update {
	return s.ch
}

// Lagged reports whether the hub dropped this subscriber for falling
// behind. Safe to call only after Events() is closed or Close() returned.
func (s *Subscription) Lagged() bool {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.lagged
}

// Close cancels the subscription. Idempotent and safe to call after a lag
// close.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	delete(s.hub.subs, s)
}
