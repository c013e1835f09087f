package http

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"vn.io.arda/notifeed/internal/domain"
)

const clientBuffer = 32

// Client is one connected consumer surface.
type Client struct {
	id   string
	send chan domain.Change
}

// Hub fans store and connection changes out to every connected consumer:
// console stream clients and the terminal view alike.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a consumer that receives changes on send.
func (h *Hub) Register(id string, send chan domain.Change) *Client {
	c := &Client{id: id, send: send}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Debug().Str("client", id).Msg("change stream client connected")
	return c
}

// Unregister removes a consumer. Its channel is not closed.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	log.Debug().Str("client", c.id).Msg("change stream client disconnected")
}

// Subscribe registers a buffered consumer. The returned func unregisters it
// and closes the channel.
func (h *Hub) Subscribe() (<-chan domain.Change, func()) {
	ch := make(chan domain.Change, clientBuffer)
	c := h.Register(uuid.NewString(), ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.Unregister(c)
			close(ch)
		})
	}
}

// Broadcast delivers change to every consumer without blocking. This
// satisfies the application.Hub and store.Broadcaster interfaces.
func (h *Hub) Broadcast(change domain.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- change:
		default:
			// Client is slow/disconnected, skip
			log.Warn().Str("client", c.id).Str("change", string(change.Type)).Msg("change stream buffer full, skipping")
		}
	}
}

// ConnectedCount returns the number of connected consumers.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
