package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/notify"
)

// pingPeriod is the interval between SSE keepalive comments
const pingPeriod = 30 * time.Second

// EventsHandler streams room change hints over Server-Sent Events.
// Each hint is advisory: clients re-fetch the room and roster on receipt.
type EventsHandler struct {
	notifier *notify.Notifier
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(notifier *notify.Notifier) *EventsHandler {
	return &EventsHandler{
		notifier: notifier,
	}
}

// Stream handles GET /api/v1/rooms/{id}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["id"])

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sub := h.notifier.Subscribe(roomID)
	defer sub.Close()

	// Send initial connection event
	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case hint, ok := <-sub.C():
			if !ok {
				// Notifier closed the subscription
				return
			}
			data, err := json.Marshal(hint)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", hint.Kind, data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// Send keepalive comment
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			// Client disconnected
			return
		}
	}
}
