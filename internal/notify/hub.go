package notify

import (
	"log/slog"
	"sync"
)

const subscriptionBufferSize = 16

// Subscription is one observer's handle on a room's hint stream
type Subscription struct {
	hub *Hub
	ch  chan Hint

	closeOnce sync.Once
}

// C returns the channel hints are delivered on. The channel is closed when
// the subscription is closed or the hub shuts down.
func (s *Subscription) C() <-chan Hint {
	return s.ch
}

// Close detaches the subscription from its hub
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub manages hint subscribers for a single room
type Hub struct {
	roomID string
	mu     sync.RWMutex
	subs   map[*Subscription]bool
	logger *slog.Logger

	register   chan *Subscription
	unregister chan *Subscription
	broadcast  chan Hint
	done       chan struct{}
}

// NewHub creates a hub for one room
func NewHub(roomID string, logger *slog.Logger) *Hub {
	return &Hub{
		roomID:     roomID,
		subs:       make(map[*Subscription]bool),
		logger:     logger.With(slog.String("room", roomID)),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		broadcast:  make(chan Hint, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subs[sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
			h.mu.Unlock()

		case hint := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for sub := range h.subs {
				select {
				case sub.ch <- hint:
				default:
					// Slow subscriber: drop rather than block. The
					// subscriber's polling fallback bounds the staleness.
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("hint dropped for slow subscribers",
					slog.String("kind", string(hint.Kind)),
					slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			for sub := range h.subs {
				close(sub.ch)
				delete(h.subs, sub)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Subscribe registers a new subscription on the hub. Subscribing to a hub
// that has shut down yields a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub: h,
		ch:  make(chan Hint, subscriptionBufferSize),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.ch)
	}
	return sub
}

// Broadcast delivers a hint to all subscribers, dropping if the hub's own
// buffer is full
func (h *Hub) Broadcast(hint Hint) {
	select {
	case h.broadcast <- hint:
	default:
		h.logger.Warn("hint dropped - hub buffer full",
			slog.String("kind", string(hint.Kind)))
	}
}

// Close shuts down the hub and all its subscriptions
func (h *Hub) Close() {
	close(h.done)
}

// SubscriberCount returns the number of active subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
