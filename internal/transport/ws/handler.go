package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/emworks/ux-agent/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST API only
	},
}

// Dispatcher applies inbound actions to a room.
type Dispatcher interface {
	Dispatch(ctx context.Context, roomID string, in model.Inbound) error
}

// RoomReader resolves the room a socket subscribes to.
type RoomReader interface {
	GetRoom(roomID string) (*model.Room, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub    *Hub
	engine Dispatcher
	rooms  RoomReader
	debug  bool
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, engine Dispatcher, rooms RoomReader, debug bool) *Handler {
	return &Handler{
		hub:    hub,
		engine: engine,
		rooms:  rooms,
		debug:  debug,
	}
}

// RoomWS handles GET /rooms/{id}?userId=...
func (h *Handler) RoomWS(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("userId")

	if _, err := h.rooms.GetRoom(roomID); err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error: %v", err)
		return
	}

	client := NewClient(roomID, userID)
	if err := h.hub.Add(client); err != nil {
		log.Printf("[WS] rejecting %s in room %s: %v", userID, roomID, err)
		wsConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		wsConn.Close()
		return
	}

	// Read after subscribing so no committed state falls between the
	// snapshot and the first broadcast.
	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		h.hub.Remove(client)
		wsConn.Close()
		return
	}
	h.sendEvent(client, model.RoomUpdate(room))
	if cur := room.CurrentRound(); cur != nil {
		h.sendEvent(client, model.RoundUpdate(cur))
	}

	go h.writePump(wsConn, client)
	h.readPump(r.Context(), wsConn, client)
}

func (h *Handler) sendEvent(client *Client, event *model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] marshal %s: %v", event.Type, err)
		return
	}
	client.Send(data)
}

func (h *Handler) readPump(ctx context.Context, wsConn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Remove(client)
		client.Close()
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error (room=%s, user=%s): %v", client.roomID, client.userID, err)
			}
			return
		}

		if !client.allow(time.Now()) {
			if h.debug {
				log.Printf("[WS] rate limit exceeded (room=%s, user=%s)", client.roomID, client.userID)
			}
			continue
		}

		var in model.Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			if h.debug {
				log.Printf("[WS] malformed message (room=%s): %v", client.roomID, err)
			}
			continue
		}
		// rejected actions are silent to clients; the engine logs them
		_ = h.engine.Dispatch(ctx, client.roomID, in)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message := <-client.send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-client.done:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			wsConn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
