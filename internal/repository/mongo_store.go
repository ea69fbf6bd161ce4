package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emworks/ux-agent/internal/model"
)

// MongoStore keeps users, rooms and messages in separate collections and
// writes single documents with upserts.
type MongoStore struct {
	users    *mongo.Collection
	rooms    *mongo.Collection
	messages *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:    db.Collection("users"),
		rooms:    db.Collection("rooms"),
		messages: db.Collection("messages"),
	}
}

func (s *MongoStore) Load(ctx context.Context) (*model.Store, error) {
	st := model.NewStore()

	if err := findAll(ctx, s.users, nil, &st.Users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if err := findAll(ctx, s.rooms, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}), &st.Rooms); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	if err := findAll(ctx, s.messages, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}), &st.Messages); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	normalize(st)
	return st, nil
}

// Save upserts every entity and drops rooms that are no longer present.
func (s *MongoStore) Save(ctx context.Context, st *model.Store) error {
	for _, u := range st.Users {
		if err := s.SaveUser(ctx, u); err != nil {
			return err
		}
	}
	ids := make([]string, 0, len(st.Rooms))
	for _, r := range st.Rooms {
		if err := s.SaveRoom(ctx, r); err != nil {
			return err
		}
		ids = append(ids, r.ID)
	}
	if _, err := s.rooms.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": ids}}); err != nil {
		return fmt.Errorf("prune rooms: %w", err)
	}
	for _, m := range st.Messages {
		if err := s.SaveMessage(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoStore) SaveRoom(ctx context.Context, room *model.Room) error {
	if err := upsert(ctx, s.rooms, room.ID, room); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

func (s *MongoStore) DeleteRoom(ctx context.Context, id string) error {
	if _, err := s.rooms.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) SaveUser(ctx context.Context, user *model.User) error {
	if err := upsert(ctx, s.users, user.ID, user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}

func (s *MongoStore) SaveMessage(ctx context.Context, msg *model.Message) error {
	if err := upsert(ctx, s.messages, msg.ID, msg); err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

func upsert(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func findAll(ctx context.Context, coll *mongo.Collection, opts *options.FindOptions, out interface{}) error {
	if opts == nil {
		opts = options.Find()
	}
	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

var (
	_ Store         = (*MongoStore)(nil)
	_ RoomWriter    = (*MongoStore)(nil)
	_ UserWriter    = (*MongoStore)(nil)
	_ MessageWriter = (*MongoStore)(nil)
)
