package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/emworks/ux-agent/internal/model"
)

// ErrRoomFull is returned by Add when a room already has MaxConnectionsPerRoom sockets.
var ErrRoomFull = errors.New("room has too many connections")

// Conn is one subscriber of a room.
type Conn interface {
	RoomID() string
	UserID() string
	// Send queues data without blocking and reports whether it was accepted.
	Send(data []byte) bool
	Close()
}

// Hub manages WebSocket connections for rooms. It has no knowledge of room
// state; it only fans events out to the sockets that subscribed.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

// Add subscribes conn to its room.
func (h *Hub) Add(conn Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.rooms[conn.RoomID()]
	if conns == nil {
		conns = make(map[Conn]struct{})
		h.rooms[conn.RoomID()] = conns
	}
	if len(conns) >= MaxConnectionsPerRoom {
		return ErrRoomFull
	}
	conns[conn] = struct{}{}
	log.Printf("[Hub] %s connected to room %s (%d open)", conn.UserID(), conn.RoomID(), len(conns))
	return nil
}

// Remove unsubscribes conn and drops the room entry once it is empty.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[conn.RoomID()]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.rooms, conn.RoomID())
	}
	log.Printf("[Hub] %s disconnected from room %s", conn.UserID(), conn.RoomID())
}

// Broadcast sends the same serialized event to every socket in the room.
// Sockets that cannot take it right now are skipped.
func (h *Hub) Broadcast(roomID string, event *model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] marshal %s: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.rooms[roomID] {
		if !conn.Send(data) {
			log.Printf("[Hub] skipped %s in room %s: not writable", conn.UserID(), roomID)
		}
	}
}

// SendToUser delivers an event to every socket the user has open in the room.
func (h *Hub) SendToUser(roomID, userID string, event *model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] marshal %s: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.rooms[roomID] {
		if conn.UserID() == userID {
			conn.Send(data)
		}
	}
}

// DisconnectRoom closes every socket of the room.
func (h *Hub) DisconnectRoom(roomID string) {
	h.mu.Lock()
	conns := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()

	for conn := range conns {
		conn.Close()
	}
}

// Count returns the number of open sockets in the room.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown closes all sockets. Hijacked connections are not closed by
// http.Server.Shutdown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[Conn]struct{})
	h.mu.Unlock()

	for _, conns := range rooms {
		for conn := range conns {
			conn.Close()
		}
	}
}
