package relay

import (
	"log"
	"sync"
)

// Hub tracks the set of connected clients per room and fans out their
// broadcasts. One goroutine owns the loop; channels carry the commands.
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	// Retained updates per room, for late joiners
	logs map[string]*updateLog

	// Inbound broadcasts from clients
	broadcast chan *envelope

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex
}

type envelope struct {
	roomID string
	frame  []byte
	sender *Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		logs:       make(map[string]*updateLog),
		broadcast:  make(chan *envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.roomID]; !ok {
				h.rooms[client.roomID] = make(map[*Client]bool)
			}
			h.rooms[client.roomID][client] = true
			clientCount := len(h.rooms[client.roomID])
			updates := h.roomLog(client.roomID).Snapshot()
			h.mu.Unlock()

			// Join acknowledgment with catch-up content
			init, err := EncodeInit(Init{RoomID: client.roomID, Updates: updates})
			if err != nil {
				log.Printf("Failed to encode INIT for room %s: %v", client.roomID, err)
			} else {
				select {
				case client.send <- init:
				default:
					log.Printf("Client %s send buffer full on join", client.clientID)
				}
			}

			log.Printf("Client joined room %s (total: %d)", client.roomID, clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.roomID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)

					if len(clients) == 0 {
						delete(h.rooms, client.roomID)
						delete(h.logs, client.roomID)
						log.Printf("Room %s closed (empty)", client.roomID)
					} else {
						log.Printf("Client left room %s (remaining: %d)", client.roomID, len(clients))
					}
				}
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			// Write lock: fan-out may drop stalled clients from the room
			h.mu.Lock()
			// The log exists from registration; a broadcast for an
			// unknown room is dropped
			if l, ok := h.logs[env.roomID]; ok {
				if msg, err := DecodeUpdate(env.frame); err == nil {
					l.Add(msg.Payload)
				}
			}
			if clients, ok := h.rooms[env.roomID]; ok {
				for client := range clients {
					if client != env.sender {
						select {
						case client.send <- env.frame:
						default:
							close(client.send)
							delete(clients, client)
						}
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// roomLog returns the room's update log, creating it lazily. Callers must
// hold h.mu.
func (h *Hub) roomLog(roomID string) *updateLog {
	l, ok := h.logs[roomID]
	if !ok {
		l = newUpdateLog()
		h.logs[roomID] = l
	}
	return l
}

func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.rooms {
		count += len(clients)
	}
	return count
}

// GetActiveRooms returns client counts by room id
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	active := make(map[string]int, len(h.rooms))
	for roomID, clients := range h.rooms {
		active[roomID] = len(clients)
	}
	return active
}

// trimLogs compacts every room log holding more than threshold updates
func (h *Hub) trimLogs(threshold, keep int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	trimmed := 0
	for _, l := range h.logs {
		if l.Len() >= threshold {
			l.Compact(keep)
			trimmed++
		}
	}
	return trimmed
}
