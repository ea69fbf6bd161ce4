package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emworks/ux-agent/internal/model"
	"github.com/emworks/ux-agent/internal/repository"
)

const (
	ownerID = "owner"
	roomID  = "room-1"
)

var errStoreDown = errors.New("store down")

type sentEvent struct {
	roomID string
	userID string
	event  *model.Event
}

type recordingHub struct {
	mu           sync.Mutex
	broadcasts   []sentEvent
	direct       []sentEvent
	disconnected []string
}

func (h *recordingHub) Broadcast(roomID string, ev *model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, sentEvent{roomID: roomID, event: ev})
}

func (h *recordingHub) SendToUser(roomID, userID string, ev *model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct = append(h.direct, sentEvent{roomID: roomID, userID: userID, event: ev})
}

func (h *recordingHub) DisconnectRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, roomID)
}

func (h *recordingHub) events() []*model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*model.Event, 0, len(h.broadcasts))
	for _, b := range h.broadcasts {
		out = append(out, b.event)
	}
	return out
}

func (h *recordingHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = nil
	h.direct = nil
}

type armUpdate struct {
	n, arm int
	reward float64
}

type fakeArms struct {
	mu        sync.Mutex
	arm       int
	selectErr error
	selects   []int
	updates   []armUpdate
	resets    []string
}

func (f *fakeArms) Select(ctx context.Context, roomID string, n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, n)
	if f.selectErr != nil {
		return 0, f.selectErr
	}
	return f.arm, nil
}

func (f *fakeArms) Update(ctx context.Context, roomID string, n, arm int, reward float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, armUpdate{n: n, arm: arm, reward: reward})
	return nil
}

func (f *fakeArms) Reset(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, roomID)
	return nil
}

type fakeRoles struct {
	role   string
	err    error
	levels []model.SignalLevels
}

func (f *fakeRoles) Classify(ctx context.Context, roundID string, levels model.SignalLevels) (string, error) {
	f.levels = append(f.levels, levels)
	return f.role, f.err
}

type fakeRecommender struct {
	text    string
	err     error
	block   chan struct{}
	roles   []string
	onStart func()
}

func (f *fakeRecommender) Generate(ctx context.Context, rc model.RecommendationContext, role string) (string, error) {
	if f.onStart != nil {
		f.onStart()
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.roles = append(f.roles, role)
	return f.text, f.err
}

// flakyStore fails every Save while fail is set, and the next failNext saves
// after that.
type flakyStore struct {
	*repository.MemoryStore
	fail     atomic.Bool
	failNext atomic.Int32
}

func (s *flakyStore) Save(ctx context.Context, st *model.Store) error {
	if s.fail.Load() {
		return errStoreDown
	}
	if s.failNext.Add(-1) >= 0 {
		return errStoreDown
	}
	s.failNext.Store(0)
	return s.MemoryStore.Save(ctx, st)
}

type harness struct {
	engine *Engine
	reg    *Registry
	hub    *recordingHub
	arms   *fakeArms
	roles  *fakeRoles
	rec    *fakeRecommender
	store  *flakyStore
}

// newHarness builds an engine over one room owned by "owner" with the given
// participants already joined.
func newHarness(t *testing.T, research bool, participants ...string) *harness {
	t.Helper()
	return newHarnessWithRoom(t, func(room *model.Room) {
		room.ResearchMode = research
		room.Participants = append(room.Participants, participants...)
	}, participants...)
}

func newHarnessWithRoom(t *testing.T, edit func(*model.Room), participants ...string) *harness {
	t.Helper()

	st := model.NewStore()
	st.Users = append(st.Users, &model.User{ID: ownerID, Name: "Owner"})
	for _, id := range participants {
		st.Users = append(st.Users, &model.User{ID: id, Name: "User " + id})
	}
	room := model.NewRoom(roomID, "Planning", ownerID, false, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	edit(room)
	st.Rooms = append(st.Rooms, room)

	store := &flakyStore{MemoryStore: repository.NewMemoryStore(st)}
	reg, err := NewRegistry(context.Background(), store)
	require.NoError(t, err)

	h := &harness{
		reg:   reg,
		hub:   &recordingHub{},
		arms:  &fakeArms{},
		roles: &fakeRoles{role: "Analyst"},
		rec:   &fakeRecommender{text: "Discuss the outliers."},
		store: store,
	}
	h.engine = NewEngine(reg, h.hub, h.arms, h.roles, h.rec, EngineOptions{BridgeTimeout: time.Second})

	var seq atomic.Int64
	h.engine.newID = func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	h.engine.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	h.engine.randIntN = func(n int) int { return n - 1 }
	return h
}

func (h *harness) act(t *testing.T, action model.Action, payload any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return h.engine.Dispatch(context.Background(), roomID, model.Inbound{Action: action, Payload: raw})
}

func (h *harness) mustAct(t *testing.T, action model.Action, payload any) {
	t.Helper()
	require.NoError(t, h.act(t, action, payload))
}

func (h *harness) room(t *testing.T) *model.Room {
	t.Helper()
	room, ok := h.reg.Get(roomID)
	require.True(t, ok)
	return room
}

func (h *harness) round(t *testing.T) *model.Round {
	t.Helper()
	round := h.room(t).CurrentRound()
	require.NotNil(t, round)
	return round
}

// advanceTo calls next_phase until the round reaches status.
func (h *harness) advanceTo(t *testing.T, status model.RoundStatus) {
	t.Helper()
	for i := 0; h.round(t).Status != status; i++ {
		require.Less(t, i, len(model.RoundStatuses), "status %s not reached", status)
		h.mustAct(t, model.ActionNextPhase, map[string]any{"userId": ownerID})
	}
}

func userPayload(userID string, kv ...any) map[string]any {
	p := map[string]any{"userId": userID}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i].(string)] = kv[i+1]
	}
	return p
}
