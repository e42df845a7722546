// Package websocket carries the live presence channel: every connected
// viewer is told how many viewers are connected, updated on each connect
// and disconnect.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/meltcore/leaderboard-backend/internal/models"
	"github.com/meltcore/leaderboard-backend/internal/pkg/metrics"
)

// Hub maintains the set of active connections and fans userCount updates
// out to all of them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients against ClientCount and Stop callers
	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new presence hub.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run owns the client set. Membership changes and the presence fan-out all
// happen on this goroutine; both connect and disconnect announce the new
// count to every client, the connection that caused the change included.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.announcePresence()

		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client]
			if known {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if known {
				h.announcePresence()
			}
		}
	}
}

// announcePresence pushes {"type":"userCount","count":N} to every client.
// A client whose send buffer is full is dropped rather than allowed to
// stall the fan-out; its read pump will unregister it.
func (h *Hub) announcePresence() {
	count := h.ClientCount()
	data, err := json.Marshal(models.PresenceMessage{
		Type:  models.PresenceMessageType,
		Count: count,
	})
	if err != nil {
		log.Printf("presence marshal error: %v", err)
		return
	}

	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mu.Unlock()

	metrics.WebSocketConnectionsActive.Set(float64(count))
	metrics.PresenceBroadcastsTotal.Inc()
}

// ClientCount returns the number of connected clients. The count never goes
// below zero: membership is a set, and unregistering an unknown client is a
// no-op.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects all clients and stops the hub.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnectionsActive.Set(0)
}
