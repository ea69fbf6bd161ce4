package model

import "time"

// Message is a chat line posted in a room, optionally tagged with a round.
type Message struct {
	ID        string    `json:"id" bson:"_id"`
	RoomID    string    `json:"roomId" bson:"roomId"`
	RoundID   *string   `json:"roundId" bson:"roundId"`
	UserID    string    `json:"userId" bson:"userId"`
	UserName  string    `json:"userName" bson:"userName"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Store is the whole persisted aggregate, in the flat-file layout.
type Store struct {
	Users    []*User    `json:"users"`
	Rooms    []*Room    `json:"rooms"`
	Messages []*Message `json:"messages"`
}

// NewStore returns an empty store with non-nil slices.
func NewStore() *Store {
	return &Store{
		Users:    []*User{},
		Rooms:    []*Room{},
		Messages: []*Message{},
	}
}
