package model

import "fmt"

// ArmState is the epsilon-greedy bandit state kept per room. Arms are
// eligible participant indices.
type ArmState struct {
	NArms   int       `json:"n_arms"`
	Epsilon float64   `json:"epsilon"`
	Counts  []int     `json:"counts"`
	Values  []float64 `json:"values"`
}

func NewArmState(nArms int, epsilon float64) *ArmState {
	return &ArmState{
		NArms:   nArms,
		Epsilon: epsilon,
		Counts:  make([]int, nArms),
		Values:  make([]float64, nArms),
	}
}

// Matches reports whether the state was built for n arms. A state for a
// different participant count is discarded by the selector.
func (s *ArmState) Matches(nArms int) bool {
	return s != nil && s.NArms == nArms && len(s.Counts) == nArms && len(s.Values) == nArms
}

// Greedy returns the arm with the highest estimated value, lowest index on ties.
func (s *ArmState) Greedy() int {
	best := 0
	for i := 1; i < len(s.Values); i++ {
		if s.Values[i] > s.Values[best] {
			best = i
		}
	}
	return best
}

// Update folds a reward into the running mean of the arm.
func (s *ArmState) Update(arm int, reward float64) error {
	if arm < 0 || arm >= s.NArms {
		return fmt.Errorf("arm %d out of range [0,%d)", arm, s.NArms)
	}
	s.Counts[arm]++
	n := float64(s.Counts[arm])
	s.Values[arm] = ((n-1)/n)*s.Values[arm] + reward/n
	return nil
}
