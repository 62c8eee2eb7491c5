package realtime

import (
	"sync"

	v1 "counsel/shared/contracts/realtime/v1"
)

// Hub owns conversation rooms. A room exists while it has members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu      sync.RWMutex
	members map[string]*Client
}

// NewHub constructs a Hub instance.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// Join adds client to the room for key.
func (h *Hub) Join(key string, c *Client) {
	if c == nil || c.ConnID == "" || key == "" {
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[key]
	if !ok {
		r = &room{members: make(map[string]*Client)}
		h.rooms[key] = r
	}
	r.mu.Lock()
	r.members[c.ConnID] = c
	r.mu.Unlock()
	h.mu.Unlock()

	c.addRoom(key)
}

// Leave removes connID from the room for key, dropping the room once empty.
func (h *Hub) Leave(key, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[key]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.members, connID)
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, key)
	}
}

// Broadcast fans env out to every member of the room for key.
// It never blocks: members that are shutting down or have a full queue are skipped
// and counted as dropped.
func (h *Hub) Broadcast(key string, env v1.Envelope) (delivered, dropped int) {
	h.mu.RLock()
	r := h.rooms[key]
	h.mu.RUnlock()
	if r == nil {
		return 0, 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		select {
		case <-m.Done():
			continue
		default:
		}

		select {
		case m.Send <- env:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Members returns the number of connections in the room for key.
func (h *Hub) Members(key string) int {
	h.mu.RLock()
	r := h.rooms[key]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Len returns the number of live rooms.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
