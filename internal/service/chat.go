package service

import (
	"context"

	"github.com/emworks/ux-agent/internal/model"
)

func (e *Engine) sendMessage(ctx context.Context, s *roomSlot, p *model.SendMessagePayload) error {
	room := s.snapshot()
	if !room.IsParticipant(p.UserID) {
		return ErrNotParticipant
	}
	user, ok := e.registry.User(p.UserID)
	if !ok {
		return ErrUserNotFound
	}

	roundID := p.RoundID
	if roundID == nil {
		if cur := room.CurrentRound(); cur != nil {
			id := cur.ID
			roundID = &id
		}
	}

	msg := &model.Message{
		ID:        e.newID(),
		RoomID:    room.ID,
		RoundID:   roundID,
		UserID:    user.ID,
		UserName:  user.Name,
		Text:      p.Text,
		CreatedAt: e.now(),
	}
	if err := e.registry.AppendMessage(ctx, msg); err != nil {
		return err
	}
	e.hub.Broadcast(room.ID, model.ChatMessage(msg))
	return nil
}
