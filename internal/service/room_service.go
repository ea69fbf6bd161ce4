package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emworks/ux-agent/internal/model"
)

// RoomService handles room lifecycle operations
type RoomService struct {
	registry *Registry
	engine   *Engine
	now      func() time.Time
}

// NewRoomService creates a new room service
func NewRoomService(registry *Registry, engine *Engine) *RoomService {
	return &RoomService{
		registry: registry,
		engine:   engine,
		now:      time.Now,
	}
}

// CreateRoom creates a room owned by ownerID, who becomes its first participant.
func (s *RoomService) CreateRoom(ctx context.Context, name, ownerID string, researchMode bool) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if _, ok := s.registry.User(ownerID); !ok {
		return nil, ErrUserNotFound
	}

	room := model.NewRoom(uuid.NewString(), name, ownerID, researchMode, s.now())
	if err := s.registry.Put(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

func (s *RoomService) GetRoom(roomID string) (*model.Room, error) {
	room, ok := s.registry.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) ListRooms() []*model.Room {
	return s.registry.Rooms()
}

func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID string) (*model.Room, error) {
	return s.engine.Join(ctx, roomID, userID)
}

func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID string) (*model.Room, error) {
	return s.engine.Leave(ctx, roomID, userID)
}

func (s *RoomService) DeleteRoom(ctx context.Context, roomID, userID string) error {
	return s.engine.DeleteRoom(ctx, roomID, userID)
}

// Messages returns the chat history of an existing room.
func (s *RoomService) Messages(roomID string) ([]*model.Message, error) {
	if _, ok := s.registry.Get(roomID); !ok {
		return nil, ErrRoomNotFound
	}
	return s.registry.Messages(roomID), nil
}
