package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the hash holding the persisted session
	DefaultRedisKey = "authsession:session"

	tokenField = "token"
	userField  = "user_info"
)

// RedisStore persists the session as a single Redis hash
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store under key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Load reads the session hash. A hash missing either field is treated as absent.
func (s *RedisStore) Load(ctx context.Context) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	token, data := fields[tokenField], fields[userField]
	if token == "" || data == "" {
		return nil, nil
	}

	var user UserInfo
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("unmarshaling user info: %w", err)
	}

	return &Session{Token: token, User: &user}, nil
}

// Save replaces both fields in one MULTI/EXEC transaction
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("marshaling user info: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, tokenField, sess.Token, userField, string(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	return nil
}

// Delete removes the session hash
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
