package model

// EventType determines the client-side reducer for an outbound event.
type EventType string

const (
	EventRoundUpdate EventType = "round_update"
	EventRoomUpdate  EventType = "room_update"
	EventChatMessage EventType = "chat_message"
	EventPhaseError  EventType = "phase_error"
)

// Event is the outbound envelope broadcast to room subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Round   *Round    `json:"round,omitempty"`
	Room    *Room     `json:"room,omitempty"`
	Message *Message  `json:"message,omitempty"`
	Deleted bool      `json:"deleted,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func RoundUpdate(round *Round) *Event {
	return &Event{Type: EventRoundUpdate, Round: round}
}

func RoomUpdate(room *Room) *Event {
	return &Event{Type: EventRoomUpdate, Room: room}
}

func RoomDeleted(room *Room) *Event {
	return &Event{Type: EventRoomUpdate, Room: room, Deleted: true}
}

func ChatMessage(msg *Message) *Event {
	return &Event{Type: EventChatMessage, Message: msg}
}

// PhaseError is sent to the owner only, after a phase transition was rolled back.
func PhaseError(round *Round, reason string) *Event {
	return &Event{Type: EventPhaseError, Round: round, Error: reason}
}
