package service

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/emworks/ux-agent/internal/cache"
	"github.com/emworks/ux-agent/internal/model"
)

// ArmSelector picks which eligible participant receives the personalized
// recommendation and learns from their feedback.
type ArmSelector interface {
	Select(ctx context.Context, roomID string, nArms int) (int, error)
	Update(ctx context.Context, roomID string, nArms, arm int, reward float64) error
	Reset(ctx context.Context, roomID string) error
}

// BanditSelector is an epsilon-greedy multi-armed bandit. State lives in the
// arm cache under the room id, so rooms never contend with each other.
type BanditSelector struct {
	states  cache.ArmCache
	epsilon float64
	float   func() float64
	intN    func(int) int
}

func NewBanditSelector(states cache.ArmCache, epsilon float64) *BanditSelector {
	return &BanditSelector{
		states:  states,
		epsilon: epsilon,
		float:   rand.Float64,
		intN:    rand.IntN,
	}
}

func (b *BanditSelector) Select(ctx context.Context, roomID string, nArms int) (int, error) {
	if nArms <= 0 {
		return 0, fmt.Errorf("%w: select with %d arms", ErrBridge, nArms)
	}
	state, err := b.load(ctx, roomID, nArms)
	if err != nil {
		return 0, err
	}

	var arm int
	if b.float() < state.Epsilon {
		arm = b.intN(nArms)
	} else {
		arm = state.Greedy()
	}

	if err := b.states.Set(ctx, roomID, state); err != nil {
		return 0, fmt.Errorf("%w: save arm state: %v", ErrBridge, err)
	}
	return arm, nil
}

func (b *BanditSelector) Update(ctx context.Context, roomID string, nArms, arm int, reward float64) error {
	if nArms <= 0 {
		return fmt.Errorf("%w: update with %d arms", ErrBridge, nArms)
	}
	state, err := b.load(ctx, roomID, nArms)
	if err != nil {
		return err
	}
	if err := state.Update(arm, reward); err != nil {
		return fmt.Errorf("%w: %v", ErrBridge, err)
	}
	if err := b.states.Set(ctx, roomID, state); err != nil {
		return fmt.Errorf("%w: save arm state: %v", ErrBridge, err)
	}
	return nil
}

// Reset forgets everything learned for a room.
func (b *BanditSelector) Reset(ctx context.Context, roomID string) error {
	if err := b.states.Delete(ctx, roomID); err != nil {
		return fmt.Errorf("%w: delete arm state: %v", ErrBridge, err)
	}
	return nil
}

// load returns the stored state, or a fresh one when none exists or the
// number of eligible participants changed.
func (b *BanditSelector) load(ctx context.Context, roomID string, nArms int) (*model.ArmState, error) {
	state, err := b.states.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: load arm state: %v", ErrBridge, err)
	}
	if state.Matches(nArms) {
		return state, nil
	}
	if state != nil {
		log.Printf("[Bandit] Room %s arm count changed %d -> %d, resetting", roomID, state.NArms, nArms)
	}
	return model.NewArmState(nArms, b.epsilon), nil
}
