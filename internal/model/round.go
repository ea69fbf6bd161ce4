package model

import (
	"maps"
	"time"
)

type RoundStatus string

const (
	StatusCognitiveLoad            RoundStatus = "cognitive_load"
	StatusVoting                   RoundStatus = "voting"
	StatusVotingDiscussion         RoundStatus = "voting_discussion"
	StatusRecommendation           RoundStatus = "recommendation"
	StatusRecommendationDiscussion RoundStatus = "recommendation_discussion"
	StatusFinalVoting              RoundStatus = "final_voting"
	StatusTeamEffectiveness        RoundStatus = "teamEffectiveness"
	StatusCompleted                RoundStatus = "completed"
)

// RoundStatuses lists every status in the only order a round may take.
var RoundStatuses = []RoundStatus{
	StatusCognitiveLoad,
	StatusVoting,
	StatusVotingDiscussion,
	StatusRecommendation,
	StatusRecommendationDiscussion,
	StatusFinalVoting,
	StatusTeamEffectiveness,
	StatusCompleted,
}

// Next returns the successor status. Completed is terminal and returns itself.
func (s RoundStatus) Next() RoundStatus {
	for i, st := range RoundStatuses {
		if st == s && i+1 < len(RoundStatuses) {
			return RoundStatuses[i+1]
		}
	}
	return StatusCompleted
}

func (s RoundStatus) Valid() bool {
	for _, st := range RoundStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// VotePhase maps a vote slot (1, 2 or 3) to the status that accepts it.
func VotePhase(slot int) (RoundStatus, bool) {
	switch slot {
	case 1:
		return StatusVoting, true
	case 2:
		return StatusRecommendation, true
	case 3:
		return StatusFinalVoting, true
	}
	return "", false
}

// Round is one task-estimation cycle within a room.
type Round struct {
	ID                    string          `json:"id" bson:"id"`
	Task                  string          `json:"task" bson:"task"`
	Status                RoundStatus     `json:"status" bson:"status"`
	Votes                 map[string]int  `json:"votes" bson:"votes"`
	Votes2                map[string]int  `json:"votes2" bson:"votes2"`
	Votes3                map[string]int  `json:"votes3" bson:"votes3"`
	CognitiveLoad         map[string]int  `json:"cognitiveLoad" bson:"cognitiveLoad"`
	AverageCognitiveLoad  *float64        `json:"average_cognitive_load" bson:"average_cognitive_load"`
	TeamEffectiveness     map[string]int  `json:"teamEffectiveness" bson:"teamEffectiveness"`
	Recommendation        *string         `json:"recommendation" bson:"recommendation"`
	Role                  *string         `json:"role" bson:"role"`
	RecommendationVotes   map[string]bool `json:"recommendationVotes" bson:"recommendationVotes"`
	ChosenIndex           *int            `json:"chosenIndex" bson:"chosenIndex"`
	TargetUserID          *string         `json:"targetUserId" bson:"targetUserId"`
	LoadingRecommendation bool            `json:"loadingRecommendation" bson:"loadingRecommendation"`
	StartedAt             time.Time       `json:"startedAt" bson:"startedAt"`
	CompletedAt           *time.Time      `json:"completedAt" bson:"completedAt"`
}

func NewRound(id, task string, now time.Time) *Round {
	return &Round{
		ID:                  id,
		Task:                task,
		Status:              StatusCognitiveLoad,
		Votes:               map[string]int{},
		Votes2:              map[string]int{},
		Votes3:              map[string]int{},
		CognitiveLoad:       map[string]int{},
		TeamEffectiveness:   map[string]int{},
		RecommendationVotes: map[string]bool{},
		StartedAt:           now,
	}
}

func (r *Round) IsActive() bool {
	return r.Status != StatusCompleted
}

// VoteSlot returns the vote map for slot 1, 2 or 3, or nil.
func (r *Round) VoteSlot(slot int) map[string]int {
	switch slot {
	case 1:
		return r.Votes
	case 2:
		return r.Votes2
	case 3:
		return r.Votes3
	}
	return nil
}

// Clone returns a deep copy with every map allocated.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Votes = cloneInts(r.Votes)
	c.Votes2 = cloneInts(r.Votes2)
	c.Votes3 = cloneInts(r.Votes3)
	c.CognitiveLoad = cloneInts(r.CognitiveLoad)
	c.TeamEffectiveness = cloneInts(r.TeamEffectiveness)
	c.RecommendationVotes = maps.Clone(r.RecommendationVotes)
	if c.RecommendationVotes == nil {
		c.RecommendationVotes = map[string]bool{}
	}
	c.AverageCognitiveLoad = cloneFloat(r.AverageCognitiveLoad)
	c.Recommendation = cloneString(r.Recommendation)
	c.Role = cloneString(r.Role)
	c.TargetUserID = cloneString(r.TargetUserID)
	if r.ChosenIndex != nil {
		idx := *r.ChosenIndex
		c.ChosenIndex = &idx
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneInts(m map[string]int) map[string]int {
	c := maps.Clone(m)
	if c == nil {
		c = map[string]int{}
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
