package ws

import (
	"encoding/json"
	"sync"
	"time"

	"auction-system/monitoring"
)

// Hub is the room registry: it maps room ids (market_<listingID> or
// chat_<userID>) to the set of live sessions. State lives only in memory
// and is rebuilt from connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	monitoring.SetActiveRooms(len(h.rooms))
}

// Leave is idempotent; empty rooms are pruned.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m := h.rooms[roomID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, roomID)
		}
	}
	monitoring.SetActiveRooms(len(h.rooms))
}

// Broadcast delivers the event to every session joined at call time. A
// session joining mid-broadcast may miss this event. Sessions whose send
// buffer is full are disconnected instead of blocking the room.
func (h *Hub) Broadcast(roomID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(payload)
	}
}

// RoomSize reports the current number of sessions in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8 * 1024
)
