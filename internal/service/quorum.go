package service

import "github.com/emworks/ux-agent/internal/model"

// answeredFunc reports whether a participant has answered in the current phase.
type answeredFunc func(userID string) bool

func hasKey[V any](m map[string]V) answeredFunc {
	return func(id string) bool {
		_, ok := m[id]
		return ok
	}
}

// quorumKeys returns the answer set for phases that compute an aggregate.
func quorumKeys(round *model.Round) (answeredFunc, bool) {
	switch round.Status {
	case model.StatusCognitiveLoad:
		return hasKey(round.CognitiveLoad), true
	case model.StatusTeamEffectiveness:
		return hasKey(round.TeamEffectiveness), true
	case model.StatusRecommendation:
		return hasKey(round.RecommendationVotes), true
	}
	return nil, false
}

// atQuorum is true when every eligible participant has answered. Answers from
// users who are no longer eligible do not count.
func atQuorum(answered answeredFunc, eligible []string) bool {
	if len(eligible) == 0 {
		return false
	}
	for _, id := range eligible {
		if !answered(id) {
			return false
		}
	}
	return true
}

// record applies write and computes the phase aggregate if the write moved the
// phase from below quorum to quorum. Overwrites at quorum never recompute.
func record(room *model.Room, round *model.Round, write func()) bool {
	eligible := room.EligibleParticipants()
	answered, ok := quorumKeys(round)
	before := ok && atQuorum(answered, eligible)
	write()
	if !ok || before || !atQuorum(answered, eligible) {
		return false
	}
	applyAggregate(room, round, eligible)
	return true
}

// settleAfterLeave handles a participant leaving mid-phase: if the remaining
// eligible participants have all answered, the aggregate is computed now.
func settleAfterLeave(room *model.Room, round *model.Round, previous []string) bool {
	answered, ok := quorumKeys(round)
	if !ok {
		return false
	}
	eligible := room.EligibleParticipants()
	if atQuorum(answered, previous) || !atQuorum(answered, eligible) {
		return false
	}
	applyAggregate(room, round, eligible)
	return true
}

func applyAggregate(room *model.Room, round *model.Round, eligible []string) {
	switch round.Status {
	case model.StatusCognitiveLoad:
		avg := meanOf(round.CognitiveLoad, eligible)
		round.AverageCognitiveLoad = &avg
	case model.StatusTeamEffectiveness:
		avg := meanOf(round.TeamEffectiveness, eligible)
		room.TeamPerformance = &avg
	case model.StatusRecommendation:
		likes := 0
		for _, id := range eligible {
			if round.RecommendationVotes[id] {
				likes++
			}
		}
		acceptance := float64(likes) / float64(len(eligible))
		n := float64(len(room.Rounds))
		if n < 1 {
			n = 1
		}
		room.Reliance = model.RoundHalf((room.Reliance*(n-1) + acceptance) / n)
	}
}

func meanOf(m map[string]int, eligible []string) float64 {
	sum := 0
	for _, id := range eligible {
		sum += m[id]
	}
	return model.RoundHalf(float64(sum) / float64(len(eligible)))
}
