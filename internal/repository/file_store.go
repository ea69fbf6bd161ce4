package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/emworks/ux-agent/internal/model"
)

// FileStore keeps the whole aggregate in a single JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the store, creating an empty file on first use.
func (s *FileStore) Load(ctx context.Context) (*model.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		st := model.NewStore()
		if err := s.write(st); err != nil {
			return nil, err
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	st := model.NewStore()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	normalize(st)
	return st, nil
}

// Save replaces the file atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, st *model.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(st)
}

func (s *FileStore) write(st *model.Store) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// normalize fills nil slices and maps left by older or hand-edited files.
func normalize(st *model.Store) {
	if st.Users == nil {
		st.Users = []*model.User{}
	}
	if st.Rooms == nil {
		st.Rooms = []*model.Room{}
	}
	if st.Messages == nil {
		st.Messages = []*model.Message{}
	}
	for i, room := range st.Rooms {
		st.Rooms[i] = room.Clone()
	}
}
