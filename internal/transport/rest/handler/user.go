package handler

import (
	"net/http"

	"github.com/emworks/ux-agent/internal/service"
)

// UserHandler handles user endpoints
type UserHandler struct {
	userSvc *service.UserService
}

func NewUserHandler(userSvc *service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// CreateUserRequest is the request body for creating a user
type CreateUserRequest struct {
	Name string `json:"name" example:"Alice"`
}

// List godoc
// @Summary  List users
// @Tags     users
// @Produce  json
// @Success  200 {array} model.User
// @Router   /api/users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.userSvc.ListUsers())
}

// Create godoc
// @Summary  Create a user
// @Tags     users
// @Accept   json
// @Produce  json
// @Param    body body CreateUserRequest true "user"
// @Success  201 {object} model.User
// @Failure  400 {object} ErrorResponse
// @Router   /api/users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userSvc.CreateUser(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
