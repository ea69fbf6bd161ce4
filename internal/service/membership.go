package service

import (
	"context"
	"log"

	"github.com/emworks/ux-agent/internal/model"
)

// Membership changes go through the same room lock as round actions, so the
// eligible set never shifts underneath a quorum check.

// Join adds the user to the room. Joining twice is not an error.
func (e *Engine) Join(ctx context.Context, roomID, userID string) (*model.Room, error) {
	if _, ok := e.registry.User(userID); !ok {
		return nil, ErrUserNotFound
	}
	s, err := e.lock(roomID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	room := working(s)
	if !room.AddParticipant(userID) {
		return room, nil
	}
	if err := e.commit(ctx, s, room, roomEvent(room)); err != nil {
		return nil, err
	}
	log.Printf("[Engine] Room %s: %s joined", roomID, userID)
	return room, nil
}

// Leave removes a participant. The owner cannot leave their room.
func (e *Engine) Leave(ctx context.Context, roomID, userID string) (*model.Room, error) {
	s, err := e.lock(roomID)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	room := working(s)
	if room.IsOwner(userID) {
		return nil, ErrInvalidArgument
	}
	previous := room.EligibleParticipants()
	if !room.RemoveParticipant(userID) {
		return nil, ErrNotParticipant
	}

	events := []*model.Event{roomEvent(room)}
	if round := room.ActiveRound(); round != nil && settleAfterLeave(room, round, previous) {
		events = append(events, roundEvent(round))
	}
	if err := e.commit(ctx, s, room, events...); err != nil {
		return nil, err
	}
	log.Printf("[Engine] Room %s: %s left", roomID, userID)
	return room, nil
}

// DeleteRoom removes the room, notifies and disconnects its sockets and
// forgets its bandit state. Only the owner may delete.
func (e *Engine) DeleteRoom(ctx context.Context, roomID, userID string) error {
	s, err := e.lock(roomID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	room := working(s)
	if !room.IsOwner(userID) {
		return ErrNotOwner
	}
	if err := e.registry.remove(ctx, s); err != nil {
		return err
	}

	e.hub.Broadcast(roomID, model.RoomDeleted(room))
	e.hub.DisconnectRoom(roomID)
	if err := e.arms.Reset(ctx, roomID); err != nil {
		log.Printf("[Engine] Room %s: reset arm state: %v", roomID, err)
	}
	log.Printf("[Engine] Room %s deleted", roomID)
	return nil
}

// lock returns the room's slot with its lock held. REST callers wait for an
// in-flight transition instead of being dropped.
func (e *Engine) lock(roomID string) (*roomSlot, error) {
	s, ok := e.registry.slot(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return s, nil
}
