// Package dependent keeps the provider API key that mirrors the session token
package dependent

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the provider API key
const DefaultRedisKey = "authsession:provider_api_key"

// Credential is a collaborator whose secret follows the session token
type Credential interface {
	Update(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	CheckHealth(ctx context.Context) error
}

// RedisCredential stores the key under a single Redis key
type RedisCredential struct {
	client *redis.Client
	key    string
}

// NewRedisCredential creates a Redis-backed credential under key
func NewRedisCredential(client *redis.Client, key string) *RedisCredential {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCredential{client: client, key: key}
}

// Update replaces the stored key
func (c *RedisCredential) Update(ctx context.Context, token string) error {
	if err := c.client.Set(ctx, c.key, token, 0).Err(); err != nil {
		return fmt.Errorf("updating provider api key: %w", err)
	}
	return nil
}

// Clear removes the stored key
func (c *RedisCredential) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("clearing provider api key: %w", err)
	}
	return nil
}

// Get returns the stored key, or "" if none
func (c *RedisCredential) Get(ctx context.Context) (string, error) {
	key, err := c.client.Get(ctx, c.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting provider api key: %w", err)
	}
	return key, nil
}

// CheckHealth verifies Redis connectivity
func (c *RedisCredential) CheckHealth(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Memory keeps the key in process memory and counts calls
type Memory struct {
	mu      sync.Mutex
	token   string
	updates int
	clears  int
}

// NewMemory creates an empty in-memory credential
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Update(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.updates++
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.clears++
	return nil
}

func (m *Memory) CheckHealth(ctx context.Context) error {
	return nil
}

// Token returns the current key
func (m *Memory) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Updates returns how many times Update was called
func (m *Memory) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// Clears returns how many times Clear was called
func (m *Memory) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Nop discards every call
type Nop struct{}

func (Nop) Update(ctx context.Context, token string) error { return nil }
func (Nop) Clear(ctx context.Context) error                { return nil }
func (Nop) CheckHealth(ctx context.Context) error          { return nil }
