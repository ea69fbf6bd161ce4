package model

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// Action identifies an inbound client request on the room socket.
type Action string

const (
	ActionStartRound         Action = "start_round"
	ActionVote               Action = "vote"
	ActionCognitiveLoad      Action = "cognitive_load"
	ActionTeamEffectiveness  Action = "team_effectiveness"
	ActionRecommendationVote Action = "recommendation_vote"
	ActionNextPhase          Action = "next_phase"
	ActionEndRound           Action = "end_round"
	ActionSendMessage        Action = "send_message"
)

// Inbound is the envelope every client message arrives in.
type Inbound struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Scale bounds for self-reported scores.
const (
	MinScaleScore   = 1
	MaxScaleScore   = 7
	MaxMessageRunes = 2000
)

var (
	errMissingUser  = errors.New("userId is required")
	errMissingValue = errors.New("value is required")
	errOutOfScale   = errors.New("value must be between 1 and 7")
)

type StartRoundPayload struct {
	Task   string `json:"task"`
	UserID string `json:"userId"`
}

func (p *StartRoundPayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	p.Task = strings.TrimSpace(p.Task)
	if p.Task == "" {
		return errors.New("task is required")
	}
	return nil
}

type VotePayload struct {
	UserID      string `json:"userId"`
	StoryPoints *int   `json:"storyPoints"`
	VoteNumber  int    `json:"voteNumber"`
}

func (p *VotePayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	if p.StoryPoints == nil {
		return errMissingValue
	}
	if *p.StoryPoints < 0 {
		return errors.New("storyPoints must not be negative")
	}
	if p.VoteNumber == 0 {
		p.VoteNumber = 1
	}
	if _, ok := VotePhase(p.VoteNumber); !ok {
		return errors.New("voteNumber must be 1, 2 or 3")
	}
	return nil
}

type CognitiveLoadPayload struct {
	UserID string `json:"userId"`
	Load   *int   `json:"load"`
}

func (p *CognitiveLoadPayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	return validateScale(p.Load)
}

type TeamEffectivenessPayload struct {
	UserID string `json:"userId"`
	Score  *int   `json:"score"`
}

func (p *TeamEffectivenessPayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	return validateScale(p.Score)
}

type RecommendationVotePayload struct {
	UserID string `json:"userId"`
	Like   *bool  `json:"like"`
}

func (p *RecommendationVotePayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	if p.Like == nil {
		return errMissingValue
	}
	return nil
}

// PhasePayload is shared by next_phase and end_round.
type PhasePayload struct {
	UserID string `json:"userId"`
}

func (p *PhasePayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	return nil
}

type SendMessagePayload struct {
	UserID  string  `json:"userId"`
	Text    string  `json:"text"`
	RoundID *string `json:"roundId"`
}

func (p *SendMessagePayload) Validate() error {
	if p.UserID == "" {
		return errMissingUser
	}
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return errors.New("text is required")
	}
	if utf8.RuneCountInString(p.Text) > MaxMessageRunes {
		return errors.New("text is too long")
	}
	return nil
}

func validateScale(v *int) error {
	if v == nil {
		return errMissingValue
	}
	if *v < MinScaleScore || *v > MaxScaleScore {
		return errOutOfScale
	}
	return nil
}
