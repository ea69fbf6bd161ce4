package repository

import (
	"context"

	"github.com/emworks/ux-agent/internal/model"
)

// Store is the persistence adapter behind the session registry. Save writes
// the whole aggregate; adapters that can write single entities also implement
// the narrower writer interfaces and the registry prefers those.
type Store interface {
	Load(ctx context.Context) (*model.Store, error)
	Save(ctx context.Context, st *model.Store) error
}

// RoomWriter persists one room without rewriting the rest of the store.
type RoomWriter interface {
	SaveRoom(ctx context.Context, room *model.Room) error
	DeleteRoom(ctx context.Context, id string) error
}

type UserWriter interface {
	SaveUser(ctx context.Context, user *model.User) error
}

type MessageWriter interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
}

// EntityWriter is implemented by adapters that never need a whole-store
// rewrite. Mixing entity writes with whole-store saves could persist a stale
// snapshot, so the registry only switches modes for adapters that write all
// entity kinds.
type EntityWriter interface {
	RoomWriter
	UserWriter
	MessageWriter
}
