package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/emworks/ux-agent/internal/model"
)

const maxUserNameRunes = 64

// UserService creates and lists users. Users carry no credentials; the id is
// the caller-supplied identity everywhere else.
type UserService struct {
	registry *Registry
}

func NewUserService(registry *Registry) *UserService {
	return &UserService{registry: registry}
}

func (s *UserService) CreateUser(ctx context.Context, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(name) > maxUserNameRunes {
		return nil, fmt.Errorf("%w: name is too long", ErrInvalidArgument)
	}

	user := &model.User{ID: uuid.NewString(), Name: name}
	if err := s.registry.PutUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUser(id string) (*model.User, error) {
	u, ok := s.registry.User(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) ListUsers() []*model.User {
	return s.registry.Users()
}
