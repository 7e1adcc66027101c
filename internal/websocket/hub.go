package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Message types sent to connected UIs.
const (
	TypeStoreChanged = "store_changed"
	TypeBackupStatus = "backup_status"
)

// Message is one notification frame. A store_changed message tells UIs to
// re-fetch the list and names the mutation in Op; a backup_status message
// carries the uploader state in State.
type Message struct {
	Type  string    `json:"type"`
	Op    string    `json:"op,omitempty"`
	State string    `json:"state,omitempty"`
	At    time.Time `json:"at"`
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", "clients", n)
}

// StoreChanged broadcasts a store_changed message for op.
func (h *Hub) StoreChanged(op string) {
	h.Broadcast(Message{Type: TypeStoreChanged, Op: op, At: h.now().UTC()})
}

// BackupStatus broadcasts a backup_status message for state.
func (h *Hub) BackupStatus(state string) {
	h.Broadcast(Message{Type: TypeBackupStatus, State: state, At: h.now().UTC()})
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// buffer full; the client refetches on its next message anyway
			h.logger.Warn("dropped message for slow client", "type", msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
