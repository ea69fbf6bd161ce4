package model

import (
	"slices"
	"time"
)

// DefaultReliance is the room reliance before any round has been scored.
const DefaultReliance = 0.5

// User is an immutable identity created through the REST API.
type User struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// Room is a persistent session container with one owner and a set of participants.
type Room struct {
	ID              string    `json:"id" bson:"_id"`
	Name            string    `json:"name" bson:"name"`
	OwnerID         string    `json:"ownerId" bson:"ownerId"`
	Participants    []string  `json:"participants" bson:"participants"` // join order, owner first
	ResearchMode    bool      `json:"researchMode" bson:"researchMode"`
	Rounds          []*Round  `json:"rounds" bson:"rounds"`
	TeamPerformance *float64  `json:"team_performance" bson:"team_performance"`
	Reliance        float64   `json:"reliance" bson:"reliance"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// NewRoom creates a room with its owner as the only participant.
func NewRoom(id, name, ownerID string, researchMode bool, now time.Time) *Room {
	return &Room{
		ID:           id,
		Name:         name,
		OwnerID:      ownerID,
		Participants: []string{ownerID},
		ResearchMode: researchMode,
		Rounds:       []*Round{},
		Reliance:     DefaultReliance,
		CreatedAt:    now,
	}
}

func (r *Room) IsOwner(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

func (r *Room) IsParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// EligibleParticipants returns the participants that take part in measurement
// (everyone except the owner), in join order. The order defines arm indices.
func (r *Room) EligibleParticipants() []string {
	out := make([]string, 0, len(r.Participants))
	for _, id := range r.Participants {
		if id != r.OwnerID {
			out = append(out, id)
		}
	}
	return out
}

// AddParticipant reports whether the user was added.
func (r *Room) AddParticipant(userID string) bool {
	if r.IsParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, userID)
	return true
}

// RemoveParticipant reports whether the user was removed. The owner cannot leave.
func (r *Room) RemoveParticipant(userID string) bool {
	if r.IsOwner(userID) {
		return false
	}
	i := slices.Index(r.Participants, userID)
	if i < 0 {
		return false
	}
	r.Participants = slices.Delete(r.Participants, i, i+1)
	return true
}

// CurrentRound returns the latest round regardless of status.
func (r *Room) CurrentRound() *Round {
	if len(r.Rounds) == 0 {
		return nil
	}
	return r.Rounds[len(r.Rounds)-1]
}

// ActiveRound returns the round that has not completed yet, if any.
func (r *Room) ActiveRound() *Round {
	if cur := r.CurrentRound(); cur != nil && cur.IsActive() {
		return cur
	}
	return nil
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Participants = slices.Clone(r.Participants)
	if c.Participants == nil {
		c.Participants = []string{}
	}
	c.Rounds = make([]*Round, len(r.Rounds))
	for i, rd := range r.Rounds {
		c.Rounds[i] = rd.Clone()
	}
	c.TeamPerformance = cloneFloat(r.TeamPerformance)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
