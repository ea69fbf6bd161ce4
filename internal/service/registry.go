package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/emworks/ux-agent/internal/model"
	"github.com/emworks/ux-agent/internal/repository"
)

// Registry owns the canonical users, rooms and messages in memory. Every
// change is persisted before it becomes visible, so nothing read from the
// registry (and therefore nothing broadcast) is ahead of the store.
type Registry struct {
	store  repository.Store
	writer repository.EntityWriter // nil for whole-store adapters

	mu       sync.RWMutex
	users    map[string]*model.User
	userIDs  []string
	rooms    map[string]*roomSlot
	roomIDs  []string
	messages []*model.Message

	// serializes whole-store saves so snapshots are never written out of order
	saveMu sync.Mutex
}

// roomSlot is the per-room critical section plus the committed room.
type roomSlot struct {
	mu      sync.Mutex
	busy    atomic.Bool // a phase transition holds mu
	deleted bool        // guarded by mu

	// committed state; the pointed-to room is never mutated
	room atomic.Pointer[model.Room]
}

func (s *roomSlot) snapshot() *model.Room {
	return s.room.Load().Clone()
}

// NewRegistry loads the store once and keeps it in memory.
func NewRegistry(ctx context.Context, store repository.Store) (*Registry, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}

	r := &Registry{
		store: store,
		users: make(map[string]*model.User),
		rooms: make(map[string]*roomSlot),
	}
	if w, ok := store.(repository.EntityWriter); ok {
		r.writer = w
	}

	for _, u := range st.Users {
		c := *u
		r.users[c.ID] = &c
		r.userIDs = append(r.userIDs, c.ID)
	}
	for _, room := range st.Rooms {
		room = room.Clone()
		// no transition survives a restart
		for _, rd := range room.Rounds {
			rd.LoadingRecommendation = false
		}
		s := &roomSlot{}
		s.room.Store(room)
		r.rooms[room.ID] = s
		r.roomIDs = append(r.roomIDs, room.ID)
	}
	r.messages = append(r.messages, st.Messages...)

	log.Printf("[Registry] Loaded %d users, %d rooms, %d messages", len(r.users), len(r.rooms), len(r.messages))
	return r, nil
}

// Get returns a copy of the committed room.
func (r *Registry) Get(roomID string) (*model.Room, bool) {
	s, ok := r.slot(roomID)
	if !ok {
		return nil, false
	}
	return s.snapshot(), true
}

// Rooms returns copies of all rooms in creation order.
func (r *Registry) Rooms() []*model.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Room, 0, len(r.roomIDs))
	for _, id := range r.roomIDs {
		out = append(out, r.rooms[id].snapshot())
	}
	return out
}

// Put persists the room and commits it, creating it when unknown. It takes
// the room's lock, so it must not be called from inside an engine action.
func (r *Registry) Put(ctx context.Context, room *model.Room) error {
	if s, ok := r.slot(room.ID); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return r.commit(ctx, s, room)
	}
	return r.create(ctx, room)
}

func (r *Registry) slot(roomID string) (*roomSlot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	return s, ok
}

func (r *Registry) create(ctx context.Context, room *model.Room) error {
	room = room.Clone()
	s := &roomSlot{}

	var direct func(context.Context) error
	if r.writer != nil {
		direct = func(ctx context.Context) error { return r.writer.SaveRoom(ctx, room) }
	}
	return r.save(ctx, direct,
		func(st *model.Store) { st.Rooms = append(st.Rooms, room) },
		func() {
			s.room.Store(room)
			r.mu.Lock()
			r.rooms[room.ID] = s
			r.roomIDs = append(r.roomIDs, room.ID)
			r.mu.Unlock()
		})
}

// commit persists a working copy and makes it the committed state. The caller
// holds s.mu.
func (r *Registry) commit(ctx context.Context, s *roomSlot, room *model.Room) error {
	if s.deleted {
		return ErrRoomNotFound
	}
	room = room.Clone()

	var direct func(context.Context) error
	if r.writer != nil {
		direct = func(ctx context.Context) error { return r.writer.SaveRoom(ctx, room) }
	}
	return r.save(ctx, direct,
		func(st *model.Store) {
			for i, existing := range st.Rooms {
				if existing.ID == room.ID {
					st.Rooms[i] = room
					return
				}
			}
			st.Rooms = append(st.Rooms, room)
		},
		func() { s.room.Store(room) })
}

// remove deletes the room from the store and the registry. The caller holds s.mu.
func (r *Registry) remove(ctx context.Context, s *roomSlot) error {
	if s.deleted {
		return ErrRoomNotFound
	}
	id := s.room.Load().ID

	var direct func(context.Context) error
	if r.writer != nil {
		direct = func(ctx context.Context) error { return r.writer.DeleteRoom(ctx, id) }
	}
	return r.save(ctx, direct,
		func(st *model.Store) {
			st.Rooms = slices.DeleteFunc(st.Rooms, func(room *model.Room) bool { return room.ID == id })
		},
		func() {
			s.deleted = true
			r.mu.Lock()
			delete(r.rooms, id)
			r.roomIDs = slices.DeleteFunc(r.roomIDs, func(v string) bool { return v == id })
			r.mu.Unlock()
		})
}

// PutUser persists a new user.
func (r *Registry) PutUser(ctx context.Context, u *model.User) error {
	c := *u
	var direct func(context.Context) error
	if r.writer != nil {
		direct = func(ctx context.Context) error { return r.writer.SaveUser(ctx, &c) }
	}
	return r.save(ctx, direct,
		func(st *model.Store) { st.Users = append(st.Users, &c) },
		func() {
			r.mu.Lock()
			if _, exists := r.users[c.ID]; !exists {
				r.userIDs = append(r.userIDs, c.ID)
			}
			r.users[c.ID] = &c
			r.mu.Unlock()
		})
}

func (r *Registry) User(id string) (*model.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, false
	}
	c := *u
	return &c, true
}

func (r *Registry) Users() []*model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.User, 0, len(r.userIDs))
	for _, id := range r.userIDs {
		c := *r.users[id]
		out = append(out, &c)
	}
	return out
}

// AppendMessage persists a chat message.
func (r *Registry) AppendMessage(ctx context.Context, m *model.Message) error {
	c := *m
	var direct func(context.Context) error
	if r.writer != nil {
		direct = func(ctx context.Context) error { return r.writer.SaveMessage(ctx, &c) }
	}
	return r.save(ctx, direct,
		func(st *model.Store) { st.Messages = append(st.Messages, &c) },
		func() {
			r.mu.Lock()
			r.messages = append(r.messages, &c)
			r.mu.Unlock()
		})
}

// Messages returns the chat history of a room, oldest first.
func (r *Registry) Messages(roomID string) []*model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Message{}
	for _, m := range r.messages {
		if m.RoomID == roomID {
			c := *m
			out = append(out, &c)
		}
	}
	return out
}

// save writes a pending change and runs commit only once it is durable.
// Entity adapters get the single write; whole-store adapters get the current
// snapshot with the change folded in.
func (r *Registry) save(ctx context.Context, direct func(context.Context) error, fold func(*model.Store), commit func()) error {
	if direct != nil {
		if err := direct(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		commit()
		return nil
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	st := r.snapshot()
	fold(st)
	if err := r.store.Save(ctx, st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	commit()
	return nil
}

// snapshot shares the committed pointers; they are never mutated.
func (r *Registry) snapshot() *model.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := &model.Store{
		Users:    make([]*model.User, 0, len(r.userIDs)),
		Rooms:    make([]*model.Room, 0, len(r.roomIDs)),
		Messages: slices.Clone(r.messages),
	}
	if st.Messages == nil {
		st.Messages = []*model.Message{}
	}
	for _, id := range r.userIDs {
		st.Users = append(st.Users, r.users[id])
	}
	for _, id := range r.roomIDs {
		st.Rooms = append(st.Rooms, r.rooms[id].room.Load())
	}
	return st
}
