package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// StaffChannel receives every event regardless of client.
const StaffChannel = "*"

// Client represents a single websocket client connection.
// We keep it minimal here; the actual network conn is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event describes a change written through the portal.
type Event struct {
	Type      string    `json:"type"` // e.g. "status_changed", "comment_added"
	Resource  string    `json:"resource"`
	RecordID  string    `json:"recordId"`
	Status    string    `json:"status,omitempty"`
	ClientIDs []string  `json:"clientIds,omitempty"`
	At        time.Time `json:"at"`
}

// Hub maintains active subscriber connections keyed by client id and fans
// events out to them.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Client]struct{}
	logger   *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		channels: make(map[string]map[Client]struct{}),
		logger:   logger.With(slog.String("component", "realtime")),
	}
}

// Register adds a client under a channel (a client id or StaffChannel).
func (h *Hub) Register(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
}

// Unregister removes a client; if the channel has no more clients, cleans up map.
func (h *Hub) Unregister(channel string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Subscribers returns the number of connections on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Broadcast sends a message to all clients of a channel.
func (h *Hub) Broadcast(channel string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		if ok := c.Send(message); !ok {
			// client write failed; let the handler clean it up on its side
			h.logger.Debug("websocket send failed", slog.String("channel", channel))
		}
	}
}

// Publish delivers e to staff subscribers and to subscribers of each linked client.
// A connection registered on several of those channels receives e once per channel.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("event encode failed", slog.Any("error", err))
		return
	}
	h.Broadcast(StaffChannel, payload)
	seen := make(map[string]struct{}, len(e.ClientIDs))
	for _, id := range e.ClientIDs {
		if _, dup := seen[id]; dup || id == StaffChannel {
			continue
		}
		seen[id] = struct{}{}
		h.Broadcast(id, payload)
	}
}
