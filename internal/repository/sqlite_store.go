package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/emworks/ux-agent/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	doc        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_room_idx ON messages(room_id, created_at);
`

// SQLiteStore stores each entity as a JSON document keyed by id.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	// a single connection keeps in-memory databases shared and serializes writers
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (*model.Store, error) {
	st := model.NewStore()
	if err := loadDocs(ctx, s.db, `SELECT doc FROM users ORDER BY rowid`, func() any { return &model.User{} }, func(v any) {
		st.Users = append(st.Users, v.(*model.User))
	}); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	if err := loadDocs(ctx, s.db, `SELECT doc FROM rooms ORDER BY created_at`, func() any { return &model.Room{} }, func(v any) {
		st.Rooms = append(st.Rooms, v.(*model.Room))
	}); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	if err := loadDocs(ctx, s.db, `SELECT doc FROM messages ORDER BY created_at`, func() any { return &model.Message{} }, func(v any) {
		st.Messages = append(st.Messages, v.(*model.Message))
	}); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	normalize(st)
	return st, nil
}

// Save rewrites all tables in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st *model.Store) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"users", "rooms", "messages"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, u := range st.Users {
		if err := saveUser(ctx, tx, u); err != nil {
			return err
		}
	}
	for _, r := range st.Rooms {
		if err := saveRoom(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, m := range st.Messages {
		if err := saveMessage(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveRoom(ctx context.Context, room *model.Room) error {
	return saveRoom(ctx, s.db, room)
}

func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, user *model.User) error {
	return saveUser(ctx, s.db, user)
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *model.Message) error {
	return saveMessage(ctx, s.db, msg)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveUser(ctx context.Context, db execer, u *model.User) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO users(id, doc) VALUES(?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		u.ID, string(doc)); err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func saveRoom(ctx context.Context, db execer, r *model.Room) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO rooms(id, created_at, doc) VALUES(?, ?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		r.ID, r.CreatedAt.UTC().Format(sqliteTimeLayout), string(doc)); err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

func saveMessage(ctx context.Context, db execer, m *model.Message) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO messages(id, room_id, created_at, doc) VALUES(?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		m.ID, m.RoomID, m.CreatedAt.UTC().Format(sqliteTimeLayout), string(doc)); err != nil {
		return fmt.Errorf("save message %s: %w", m.ID, err)
	}
	return nil
}

// fixed-width so lexical order matches time order
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func loadDocs(ctx context.Context, db *sql.DB, query string, alloc func() any, add func(any)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return err
		}
		v := alloc()
		if err := json.Unmarshal([]byte(doc), v); err != nil {
			return err
		}
		add(v)
	}
	return rows.Err()
}

var (
	_ Store         = (*SQLiteStore)(nil)
	_ RoomWriter    = (*SQLiteStore)(nil)
	_ UserWriter    = (*SQLiteStore)(nil)
	_ MessageWriter = (*SQLiteStore)(nil)
)
