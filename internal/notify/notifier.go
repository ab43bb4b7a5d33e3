package notify

import (
	"log/slog"
	"sync"

	"github.com/lmartell/cipherduel/internal/model"
)

// Notifier manages hint hubs for all rooms
type Notifier struct {
	mu     sync.RWMutex
	hubs   map[model.RoomID]*Hub
	logger *slog.Logger
}

// Ensure Notifier implements Publisher
var _ Publisher = (*Notifier)(nil)

// New creates a Notifier
func New(logger *slog.Logger) *Notifier {
	return &Notifier{
		hubs:   make(map[model.RoomID]*Hub),
		logger: logger.With(slog.String("component", "notify")),
	}
}

// Subscribe registers interest in a room's change hints, creating the room's
// hub if needed
func (n *Notifier) Subscribe(roomID model.RoomID) *Subscription {
	return n.getOrCreateHub(roomID).Subscribe()
}

// Publish delivers a hint to the room's subscribers. Rooms with no
// subscribers drop the hint; there is nobody to re-fetch on its behalf.
func (n *Notifier) Publish(hint Hint) {
	n.mu.RLock()
	hub := n.hubs[hint.RoomID]
	n.mu.RUnlock()

	if hub == nil {
		return
	}
	hub.Broadcast(hint)
}

// SubscriberCount returns the number of subscriptions for a room
func (n *Notifier) SubscriberCount(roomID model.RoomID) int {
	n.mu.RLock()
	hub := n.hubs[roomID]
	n.mu.RUnlock()

	if hub == nil {
		return 0
	}
	return hub.SubscriberCount()
}

// CleanupEmptyHubs removes hubs with no subscribers
func (n *Notifier) CleanupEmptyHubs() {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := 0
	for id, hub := range n.hubs {
		if hub.SubscriberCount() == 0 {
			hub.Close()
			delete(n.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		n.logger.Info("empty hint hubs cleaned up", slog.Int("removed", removed))
	}
}

// Close shuts down all hubs
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, hub := range n.hubs {
		hub.Close()
		delete(n.hubs, id)
	}
}

func (n *Notifier) getOrCreateHub(roomID model.RoomID) *Hub {
	n.mu.Lock()
	defer n.mu.Unlock()

	if hub, ok := n.hubs[roomID]; ok {
		return hub
	}

	hub := NewHub(string(roomID), n.logger)
	n.hubs[roomID] = hub
	go hub.Run()
	return hub
}
