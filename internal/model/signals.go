package model

import "math"

// Level is a quantized signal fed to the role classifier.
type Level string

const (
	LevelLow  Level = "low"
	LevelHigh Level = "high"
)

// Quantization thresholds. Cognitive load and team performance are on a 1-7
// scale, reliance is in [0,1]. A value equal to the threshold is low.
const (
	CognitiveLoadThreshold   = 4.0
	TeamPerformanceThreshold = 4.0
	RelianceThreshold        = 0.5
)

// SignalLevels is the evidence used to classify the assistant role.
type SignalLevels struct {
	CognitiveLoad   Level `json:"cognitive_load" yaml:"cognitive_load"`
	TeamPerformance Level `json:"team_performance" yaml:"team_performance"`
	Reliance        Level `json:"reliance" yaml:"reliance"`
}

// QuantizeSignals maps raw room/round metrics to levels. Missing values are low.
func QuantizeSignals(cognitiveLoad, teamPerformance *float64, reliance float64) SignalLevels {
	return SignalLevels{
		CognitiveLoad:   levelOf(cognitiveLoad, CognitiveLoadThreshold),
		TeamPerformance: levelOf(teamPerformance, TeamPerformanceThreshold),
		Reliance:        levelOf(&reliance, RelianceThreshold),
	}
}

func levelOf(v *float64, threshold float64) Level {
	if v == nil || math.IsNaN(*v) || *v <= threshold {
		return LevelLow
	}
	return LevelHigh
}

// RecommendationContext is the snapshot handed to the recommendation bridge
// when a round enters the recommendation phase.
type RecommendationContext struct {
	Task                 string         `json:"task"`
	Votes                map[string]int `json:"votes"`
	AverageCognitiveLoad *float64       `json:"average_cognitive_load"`
	TeamPerformance      *float64       `json:"team_performance"`
	Reliance             float64        `json:"reliance"`
}

// NewRecommendationContext copies the inputs so bridges never share maps with the aggregate.
func NewRecommendationContext(room *Room, round *Round) RecommendationContext {
	return RecommendationContext{
		Task:                 round.Task,
		Votes:                cloneInts(round.Votes),
		AverageCognitiveLoad: cloneFloat(round.AverageCognitiveLoad),
		TeamPerformance:      cloneFloat(room.TeamPerformance),
		Reliance:             room.Reliance,
	}
}

// RoundHalf rounds to two decimals, halves away from zero.
func RoundHalf(x float64) float64 {
	return math.Round(x*100) / 100
}
