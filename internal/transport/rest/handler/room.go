package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/emworks/ux-agent/internal/service"
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	roomSvc *service.RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomSvc *service.RoomService) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc}
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	Name         string `json:"name" example:"Sprint 42"`
	OwnerID      string `json:"ownerId"`
	ResearchMode bool   `json:"researchMode"`
}

// MembershipRequest is the request body for join and leave
type MembershipRequest struct {
	UserID string `json:"userId"`
}

// List godoc
// @Summary  List rooms
// @Tags     rooms
// @Produce  json
// @Success  200 {array} model.Room
// @Router   /api/rooms [get]
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.roomSvc.ListRooms())
}

// Create godoc
// @Summary  Create a room
// @Tags     rooms
// @Accept   json
// @Produce  json
// @Param    body body CreateRoomRequest true "room"
// @Success  201 {object} model.Room
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms [post]
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "missing name or ownerId")
		return
	}

	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name, req.OwnerID, req.ResearchMode)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// Get godoc
// @Summary  Get a room
// @Tags     rooms
// @Produce  json
// @Param    id path string true "room id"
// @Success  200 {object} model.Room
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms/{id} [get]
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomSvc.GetRoom(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Join godoc
// @Summary  Join a room
// @Tags     rooms
// @Accept   json
// @Produce  json
// @Param    id   path string            true "room id"
// @Param    body body MembershipRequest true "user"
// @Success  200 {object} model.Room
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms/{id}/join [put]
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := membershipUser(w, r)
	if !ok {
		return
	}
	room, err := h.roomSvc.JoinRoom(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Leave godoc
// @Summary  Leave a room
// @Tags     rooms
// @Accept   json
// @Produce  json
// @Param    id   path string            true "room id"
// @Param    body body MembershipRequest true "user"
// @Success  200 {object} model.Room
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms/{id}/leave [put]
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := membershipUser(w, r)
	if !ok {
		return
	}
	room, err := h.roomSvc.LeaveRoom(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Delete godoc
// @Summary  Delete a room
// @Tags     rooms
// @Produce  json
// @Param    id     path  string true "room id"
// @Param    userId query string true "owner id"
// @Success  200 {object} MessageResponse
// @Failure  400 {object} ErrorResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms/{id} [delete]
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	if err := h.roomSvc.DeleteRoom(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Room deleted"})
}

// Messages godoc
// @Summary  Chat history of a room
// @Tags     rooms
// @Produce  json
// @Param    id path string true "room id"
// @Success  200 {array} model.Message
// @Failure  404 {object} ErrorResponse
// @Router   /api/rooms/{id}/messages [get]
func (h *RoomHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.roomSvc.Messages(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func membershipUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req MembershipRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return "", false
	}
	return req.UserID, true
}
