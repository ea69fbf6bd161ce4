package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/emworks/ux-agent/internal/model"
)

// Engine is the per-room round state machine. Every action runs under the
// room's lock against a working copy, which is persisted before it is
// committed and broadcast.
type Engine struct {
	registry    *Registry
	hub         Broadcaster
	arms        ArmSelector
	roles       RoleClassifier
	recommender Recommender

	bridgeTimeout time.Duration
	debug         bool

	now      func() time.Time
	newID    func() string
	randIntN func(int) int

	handlers map[model.Action]handler
}

// EngineOptions tunes the engine; zero values get defaults.
type EngineOptions struct {
	BridgeTimeout time.Duration
	Debug         bool
}

const defaultBridgeTimeout = 15 * time.Second

type handler func(ctx context.Context, s *roomSlot, payload json.RawMessage) error

// typed decodes and validates the payload before calling fn.
func typed[P any, PT interface {
	*P
	Validate() error
}](fn func(context.Context, *roomSlot, PT) error) handler {
	return func(ctx context.Context, s *roomSlot, payload json.RawMessage) error {
		var p P
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		pt := PT(&p)
		if err := pt.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return fn(ctx, s, pt)
	}
}

func NewEngine(registry *Registry, hub Broadcaster, arms ArmSelector, roles RoleClassifier, recommender Recommender, opts EngineOptions) *Engine {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	if opts.BridgeTimeout <= 0 {
		opts.BridgeTimeout = defaultBridgeTimeout
	}
	e := &Engine{
		registry:      registry,
		hub:           hub,
		arms:          arms,
		roles:         roles,
		recommender:   recommender,
		bridgeTimeout: opts.BridgeTimeout,
		debug:         opts.Debug,
		now:           time.Now,
		newID:         uuid.NewString,
		randIntN:      rand.IntN,
	}
	e.handlers = map[model.Action]handler{
		model.ActionStartRound:         typed[model.StartRoundPayload](e.startRound),
		model.ActionVote:               typed[model.VotePayload](e.vote),
		model.ActionCognitiveLoad:      typed[model.CognitiveLoadPayload](e.cognitiveLoad),
		model.ActionTeamEffectiveness:  typed[model.TeamEffectivenessPayload](e.teamEffectiveness),
		model.ActionRecommendationVote: typed[model.RecommendationVotePayload](e.recommendationVote),
		model.ActionNextPhase:          typed[model.PhasePayload](e.nextPhase),
		model.ActionEndRound:           typed[model.PhasePayload](e.endRound),
		model.ActionSendMessage:        typed[model.SendMessagePayload](e.sendMessage),
	}
	return e
}

// Dispatch applies one inbound action to a room. Rejected actions change
// nothing and are not reported to clients; the error is returned so callers
// can log or assert on it.
func (e *Engine) Dispatch(ctx context.Context, roomID string, in model.Inbound) error {
	h, ok := e.handlers[in.Action]
	if !ok {
		return e.reject(roomID, in.Action, ErrUnknownAction)
	}
	s, ok := e.registry.slot(roomID)
	if !ok {
		return e.reject(roomID, in.Action, ErrRoomNotFound)
	}
	// a phase transition is in flight; drop instead of queueing behind it
	if s.busy.Load() {
		return e.reject(roomID, in.Action, ErrRoomBusy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return e.reject(roomID, in.Action, ErrRoomNotFound)
	}
	if err := h(ctx, s, in.Payload); err != nil {
		return e.reject(roomID, in.Action, err)
	}
	return nil
}

func (e *Engine) reject(roomID string, action model.Action, err error) error {
	switch {
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrBridge):
		log.Printf("[Engine] Room %s: %s failed: %v", roomID, action, err)
	case e.debug:
		log.Printf("[Engine] Room %s: dropped %s: %v", roomID, action, err)
	}
	return err
}

// commit persists the working copy, then broadcasts the events.
func (e *Engine) commit(ctx context.Context, s *roomSlot, room *model.Room, events ...*model.Event) error {
	if err := e.registry.commit(ctx, s, room); err != nil {
		return err
	}
	for _, ev := range events {
		e.hub.Broadcast(room.ID, ev)
	}
	return nil
}

// working returns a mutable copy of the committed room. Outside a transition
// a set loading flag is left over from a failed restore and is cleared.
func working(s *roomSlot) *model.Room {
	room := s.snapshot()
	if round := room.CurrentRound(); round != nil && !s.busy.Load() {
		round.LoadingRecommendation = false
	}
	return room
}

func roundEvent(round *model.Round) *model.Event {
	return model.RoundUpdate(round.Clone())
}

func roomEvent(room *model.Room) *model.Event {
	return model.RoomUpdate(room.Clone())
}

// measured returns the active round if userID may submit measurements in it.
func measured(room *model.Room, userID string) (*model.Round, error) {
	round := room.ActiveRound()
	if round == nil {
		return nil, ErrNoActiveRound
	}
	if room.IsOwner(userID) {
		return nil, ErrOwnerCannotVote
	}
	if !room.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return round, nil
}

func (e *Engine) startRound(ctx context.Context, s *roomSlot, p *model.StartRoundPayload) error {
	room := working(s)
	if !room.IsOwner(p.UserID) {
		return ErrNotOwner
	}
	if room.ActiveRound() != nil {
		return ErrRoundActive
	}

	round := model.NewRound(e.newID(), p.Task, e.now())
	room.Rounds = append(room.Rounds, round)
	if err := e.commit(ctx, s, room, roundEvent(round)); err != nil {
		return err
	}
	log.Printf("[Engine] Room %s: round %s started", room.ID, round.ID)
	return nil
}

func (e *Engine) vote(ctx context.Context, s *roomSlot, p *model.VotePayload) error {
	room := working(s)
	round, err := measured(room, p.UserID)
	if err != nil {
		return err
	}
	if phase, _ := model.VotePhase(p.VoteNumber); round.Status != phase {
		return ErrWrongPhase
	}

	round.VoteSlot(p.VoteNumber)[p.UserID] = *p.StoryPoints
	return e.commit(ctx, s, room, roundEvent(round))
}

func (e *Engine) cognitiveLoad(ctx context.Context, s *roomSlot, p *model.CognitiveLoadPayload) error {
	room := working(s)
	round, err := measured(room, p.UserID)
	if err != nil {
		return err
	}
	if round.Status != model.StatusCognitiveLoad {
		return ErrWrongPhase
	}

	record(room, round, func() { round.CognitiveLoad[p.UserID] = *p.Load })
	return e.commit(ctx, s, room, roundEvent(round))
}

func (e *Engine) teamEffectiveness(ctx context.Context, s *roomSlot, p *model.TeamEffectivenessPayload) error {
	room := working(s)
	round, err := measured(room, p.UserID)
	if err != nil {
		return err
	}
	if round.Status != model.StatusTeamEffectiveness {
		return ErrWrongPhase
	}

	reached := record(room, round, func() { round.TeamEffectiveness[p.UserID] = *p.Score })
	events := []*model.Event{roundEvent(round)}
	if reached {
		events = append(events, roomEvent(room))
	}
	return e.commit(ctx, s, room, events...)
}

func (e *Engine) recommendationVote(ctx context.Context, s *roomSlot, p *model.RecommendationVotePayload) error {
	room := working(s)
	round, err := measured(room, p.UserID)
	if err != nil {
		return err
	}
	if round.Status != model.StatusRecommendation {
		return ErrWrongPhase
	}

	reached := record(room, round, func() { round.RecommendationVotes[p.UserID] = *p.Like })
	events := []*model.Event{roundEvent(round)}
	if reached {
		events = append(events, roomEvent(room))
	}
	if err := e.commit(ctx, s, room, events...); err != nil {
		return err
	}

	if room.ResearchMode && round.ChosenIndex != nil && round.TargetUserID != nil && *round.TargetUserID == p.UserID {
		reward := 0.0
		if *p.Like {
			reward = 1.0
		}
		n := len(room.EligibleParticipants())
		if err := e.arms.Update(ctx, room.ID, n, *round.ChosenIndex, reward); err != nil {
			log.Printf("[Engine] Room %s: arm update failed: %v", room.ID, err)
		}
	}
	return nil
}

func (e *Engine) endRound(ctx context.Context, s *roomSlot, p *model.PhasePayload) error {
	room := working(s)
	if !room.IsOwner(p.UserID) {
		return ErrNotOwner
	}
	round := room.ActiveRound()
	if round == nil {
		return ErrNoActiveRound
	}

	now := e.now()
	round.Status = model.StatusCompleted
	round.CompletedAt = &now
	round.LoadingRecommendation = false
	if err := e.commit(ctx, s, room, roundEvent(round)); err != nil {
		return err
	}
	log.Printf("[Engine] Room %s: round %s ended", room.ID, round.ID)
	return nil
}

// nextPhase advances the active round by exactly one status. While it runs
// the room is marked busy and other actions for the room are dropped.
func (e *Engine) nextPhase(ctx context.Context, s *roomSlot, p *model.PhasePayload) error {
	before := working(s)
	if !before.IsOwner(p.UserID) {
		return ErrNotOwner
	}
	if before.ActiveRound() == nil {
		return ErrNoActiveRound
	}

	s.busy.Store(true)
	defer s.busy.Store(false)

	// a transition outlives the connection that requested it
	ctx = context.WithoutCancel(ctx)

	room := before.Clone()
	round := room.ActiveRound()
	round.LoadingRecommendation = true
	if err := e.commit(ctx, s, room, roundEvent(round)); err != nil {
		return err
	}

	prev := round.Status
	round.Status = prev.Next()
	switch round.Status {
	case model.StatusRecommendation:
		if err := e.enterRecommendation(ctx, room, round); err != nil {
			round.Status = prev
			round.LoadingRecommendation = false
			log.Printf("[Engine] Room %s: entering %s failed, staying in %s: %v", room.ID, model.StatusRecommendation, prev, err)
			if cerr := e.commit(ctx, s, room, roundEvent(round)); cerr != nil {
				e.restore(ctx, s, before)
				return errors.Join(err, cerr)
			}
			e.hub.SendToUser(room.ID, room.OwnerID, model.PhaseError(round.Clone(), err.Error()))
			return err
		}
	case model.StatusCompleted:
		now := e.now()
		round.CompletedAt = &now
	}

	round.LoadingRecommendation = false
	if err := e.commit(ctx, s, room, roundEvent(round)); err != nil {
		e.restore(ctx, s, before)
		return err
	}
	log.Printf("[Engine] Room %s: round %s %s -> %s", room.ID, round.ID, prev, round.Status)
	return nil
}

// restore puts back the state from before a failed transition so the loading
// flag is not left set.
func (e *Engine) restore(ctx context.Context, s *roomSlot, before *model.Room) {
	if err := e.commit(ctx, s, before, roundEvent(before.CurrentRound())); err != nil {
		log.Printf("[Engine] Room %s: restore after failed transition: %v", before.ID, err)
	}
}

// enterRecommendation runs the bridges and assigns their results to the
// round only when all of them succeed.
func (e *Engine) enterRecommendation(ctx context.Context, room *model.Room, round *model.Round) error {
	ctx, cancel := context.WithTimeout(ctx, e.bridgeTimeout)
	defer cancel()

	var role string
	if room.ResearchMode {
		levels := model.QuantizeSignals(round.AverageCognitiveLoad, room.TeamPerformance, room.Reliance)
		r, err := e.roles.Classify(ctx, round.ID, levels)
		if err != nil {
			return bridgeError("role", err)
		}
		role = r
	}

	text, err := e.recommender.Generate(ctx, model.NewRecommendationContext(room, round), role)
	if err != nil {
		return bridgeError("recommendation", err)
	}

	var chosen *int
	var target *string
	if eligible := room.EligibleParticipants(); len(eligible) > 0 {
		idx := 0
		if room.ResearchMode {
			idx, err = e.arms.Select(ctx, room.ID, len(eligible))
			if err != nil {
				return bridgeError("arm select", err)
			}
		} else {
			idx = e.randIntN(len(eligible))
		}
		if idx < 0 || idx >= len(eligible) {
			return fmt.Errorf("%w: arm %d out of range [0,%d)", ErrBridge, idx, len(eligible))
		}
		id := eligible[idx]
		chosen, target = &idx, &id
	}

	round.Recommendation = &text
	round.Role = nil
	if role != "" {
		round.Role = &role
	}
	round.ChosenIndex = chosen
	round.TargetUserID = target
	return nil
}

func bridgeError(stage string, err error) error {
	if errors.Is(err, ErrBridge) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrBridge, stage, err)
}
