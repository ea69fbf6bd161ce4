package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emworks/ux-agent/internal/model"
)

// ArmCache stores bandit state per room.
type ArmCache interface {
	Get(ctx context.Context, roomID string) (*model.ArmState, error)
	Set(ctx context.Context, roomID string, state *model.ArmState) error
	Delete(ctx context.Context, roomID string) error
}

type armCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArmCache creates a Redis-backed arm cache. A zero ttl keeps keys forever.
func NewArmCache(client *redis.Client, ttl time.Duration) ArmCache {
	return &armCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *armCache) key(roomID string) string {
	return fmt.Sprintf("bandit:%s", roomID)
}

func (c *armCache) Get(ctx context.Context, roomID string) (*model.ArmState, error) {
	data, err := c.client.Get(ctx, c.key(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.ArmState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *armCache) Set(ctx context.Context, roomID string, state *model.ArmState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(roomID), data, c.ttl).Err()
}

func (c *armCache) Delete(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, c.key(roomID)).Err()
}

// memoryArmCache is used when no Redis address is configured.
type memoryArmCache struct {
	mu     sync.Mutex
	states map[string][]byte
}

func NewMemoryArmCache() ArmCache {
	return &memoryArmCache{states: make(map[string][]byte)}
}

func (c *memoryArmCache) Get(ctx context.Context, roomID string) (*model.ArmState, error) {
	c.mu.Lock()
	data, ok := c.states[roomID]
	c.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var state model.ArmState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *memoryArmCache) Set(ctx context.Context, roomID string, state *model.ArmState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.states[roomID] = data
	c.mu.Unlock()
	return nil
}

func (c *memoryArmCache) Delete(ctx context.Context, roomID string) error {
	c.mu.Lock()
	delete(c.states, roomID)
	c.mu.Unlock()
	return nil
}
