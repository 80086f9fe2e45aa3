package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/teamhub254/Homeseeker-sub000/internal/utils"
)

// Hub tracks live websocket clients so they can be counted and closed on
// shutdown.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	byUser  map[utils.SixID]map[uuid.UUID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		byUser:  make(map[utils.SixID]map[uuid.UUID]struct{}),
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	if _, ok := h.byUser[c.UserID]; !ok {
		h.byUser[c.UserID] = make(map[uuid.UUID]struct{})
	}
	h.byUser[c.UserID][c.ID] = struct{}{}
	log.Printf("Websocket client %s connected for user %s", c.ID, c.UserID)
}

func (h *Hub) Remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	if ids, ok := h.byUser[c.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
	log.Printf("Websocket client %s disconnected for user %s", id, c.UserID)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserConnections returns how many connections a user has open.
func (h *Hub) UserConnections(userID utils.SixID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
