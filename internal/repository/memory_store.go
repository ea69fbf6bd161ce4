package repository

import (
	"context"
	"sync"

	"github.com/emworks/ux-agent/internal/model"
)

// MemoryStore keeps a private deep copy of the last saved aggregate.
type MemoryStore struct {
	mu    sync.Mutex
	state *model.Store
	saves int
}

func NewMemoryStore(initial *model.Store) *MemoryStore {
	if initial == nil {
		initial = model.NewStore()
	}
	return &MemoryStore{state: copyStore(initial)}
}

func (s *MemoryStore) Load(ctx context.Context) (*model.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStore(s.state), nil
}

func (s *MemoryStore) Save(ctx context.Context, st *model.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = copyStore(st)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func copyStore(st *model.Store) *model.Store {
	out := model.NewStore()
	for _, u := range st.Users {
		c := *u
		out.Users = append(out.Users, &c)
	}
	for _, r := range st.Rooms {
		out.Rooms = append(out.Rooms, r.Clone())
	}
	for _, m := range st.Messages {
		c := *m
		out.Messages = append(out.Messages, &c)
	}
	return out
}
