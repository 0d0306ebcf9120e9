package ws

import (
	"sync"

	"github.com/yourorg/chat-backend/internal/event"
)

// UserRoom names a user's personal notification channel. Every
// authenticated connection joins it for the lifetime of the session.
func UserRoom(userID string) string {
	return "user_" + userID
}

// Hub tracks which connections have joined which rooms. Conversation
// rooms and personal channels share one namespace; membership is
// ephemeral and dies with the connection.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join is idempotent.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Remove drops the connection from every room it joined. Called on
// disconnect; in-flight operations the connection started are unaffected.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Broadcast(room, name string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.Emit(name, payload)
	}
}

// Emit performs the socket writes for events produced by the service
// layer.
func (h *Hub) Emit(events []event.Event) {
	for _, ev := range events {
		switch ev.Scope {
		case event.ScopeRoom:
			h.Broadcast(ev.Target, ev.Name, ev.Payload)
		case event.ScopeUser:
			h.Broadcast(UserRoom(ev.Target), ev.Name, ev.Payload)
		}
	}
}

// InRoom reports membership; used by tests and diagnostics.
func (h *Hub) InRoom(room string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}
