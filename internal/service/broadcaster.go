package service

import "github.com/emworks/ux-agent/internal/model"

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	Broadcast(roomID string, event *model.Event)
	SendToUser(roomID, userID string, event *model.Event)
	DisconnectRoom(roomID string)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, *model.Event)          {}
func (nopBroadcaster) SendToUser(string, string, *model.Event) {}
func (nopBroadcaster) DisconnectRoom(string)                   {}
