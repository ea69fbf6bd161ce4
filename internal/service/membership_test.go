package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emworks/ux-agent/internal/model"
)

func TestEngine_Join(t *testing.T) {
	h := newHarness(t, false, "a")
	require.NoError(t, h.reg.PutUser(context.Background(), &model.User{ID: "b", Name: "Bea"}))

	room, err := h.engine.Join(context.Background(), roomID, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{ownerID, "a", "b"}, room.Participants)

	events := h.hub.events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRoomUpdate, events[0].Type)

	// joining again changes nothing
	_, err = h.engine.Join(context.Background(), roomID, "b")
	require.NoError(t, err)
	assert.Len(t, h.hub.events(), 1)

	_, err = h.engine.Join(context.Background(), roomID, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = h.engine.Join(context.Background(), "missing", "b")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestEngine_Leave(t *testing.T) {
	t.Run("owner cannot leave", func(t *testing.T) {
		h := newHarness(t, false, "a")
		_, err := h.engine.Leave(context.Background(), roomID, ownerID)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("non-member", func(t *testing.T) {
		h := newHarness(t, false, "a")
		_, err := h.engine.Leave(context.Background(), roomID, "zed")
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("leaving completes a pending quorum", func(t *testing.T) {
		h := newHarness(t, false, "a", "b", "c")
		startRound(t, h)
		h.mustAct(t, model.ActionCognitiveLoad, userPayload("a", "load", 2))
		h.mustAct(t, model.ActionCognitiveLoad, userPayload("b", "load", 5))
		assert.Nil(t, h.round(t).AverageCognitiveLoad)
		h.hub.reset()

		room, err := h.engine.Leave(context.Background(), roomID, "c")
		require.NoError(t, err)
		assert.Equal(t, []string{ownerID, "a", "b"}, room.Participants)

		avg := h.round(t).AverageCognitiveLoad
		require.NotNil(t, avg)
		assert.Equal(t, 3.5, *avg)

		events := h.hub.events()
		require.Len(t, events, 2)
		assert.Equal(t, model.EventRoomUpdate, events[0].Type)
		assert.Equal(t, model.EventRoundUpdate, events[1].Type)
	})

	t.Run("answers of a departed user do not count", func(t *testing.T) {
		h := newHarness(t, false, "a", "b", "c")
		startRound(t, h)
		h.mustAct(t, model.ActionCognitiveLoad, userPayload("c", "load", 7))
		_, err := h.engine.Leave(context.Background(), roomID, "c")
		require.NoError(t, err)

		h.mustAct(t, model.ActionCognitiveLoad, userPayload("a", "load", 1))
		h.mustAct(t, model.ActionCognitiveLoad, userPayload("b", "load", 3))
		assert.Equal(t, 2.0, *h.round(t).AverageCognitiveLoad)
	})
}

func TestEngine_DeleteRoom(t *testing.T) {
	h := newHarness(t, true, "a")

	err := h.engine.DeleteRoom(context.Background(), roomID, "a")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, h.engine.DeleteRoom(context.Background(), roomID, ownerID))
	_, ok := h.reg.Get(roomID)
	assert.False(t, ok)

	events := h.hub.events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Deleted)
	assert.Equal(t, []string{roomID}, h.hub.disconnected)
	assert.Equal(t, []string{roomID}, h.arms.resets)

	err = h.act(t, model.ActionStartRound, userPayload(ownerID, "task", "x"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, h.engine.DeleteRoom(context.Background(), roomID, ownerID), ErrRoomNotFound)
}

func TestEngine_SendMessage(t *testing.T) {
	h := newHarness(t, false, "a")
	startRound(t, h)
	roundID := h.round(t).ID
	h.hub.reset()

	h.mustAct(t, model.ActionSendMessage, userPayload("a", "text", "  I think it's a 5  "))

	msgs := h.reg.Messages(roomID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "I think it's a 5", msgs[0].Text)
	assert.Equal(t, "User a", msgs[0].UserName)
	require.NotNil(t, msgs[0].RoundID)
	assert.Equal(t, roundID, *msgs[0].RoundID)

	events := h.hub.events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventChatMessage, events[0].Type)
	assert.Equal(t, msgs[0].ID, events[0].Message.ID)

	// the owner may chat too
	h.mustAct(t, model.ActionSendMessage, userPayload(ownerID, "text", "ok"))

	err := h.act(t, model.ActionSendMessage, userPayload("stranger", "text", "hi"))
	assert.ErrorIs(t, err, ErrNotParticipant)
	err = h.act(t, model.ActionSendMessage, userPayload("a", "text", ""))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Len(t, h.reg.Messages(roomID), 2)
}
