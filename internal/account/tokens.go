package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "verify:v1:"

// TokenStore issues and consumes single-use account verification tokens.
// Tokens expire on their own after the configured TTL.
type TokenStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

// RedisTokenStore keeps verification tokens in Redis with a TTL.
type RedisTokenStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisTokenStore builds a Redis-backed token store.
func NewRedisTokenStore(cache *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{cache: cache, ttl: ttl}
}

// Issue creates a fresh token bound to the user.
func (s *RedisTokenStore) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.cache.Set(ctx, tokenPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return token, nil
}

// Consume resolves and deletes the token in one step so it cannot be reused.
func (s *RedisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.cache.GetDel(ctx, tokenPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("consume verification token: %w", err)
	}
	return userID, nil
}

type memoryToken struct {
	userID    string
	expiresAt time.Time
}

type memoryTokenStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]memoryToken
}

// NewMemoryTokenStore builds an in-memory token store for tests and dev mode.
func NewMemoryTokenStore(ttl time.Duration) TokenStore {
	return &memoryTokenStore{ttl: ttl, tokens: make(map[string]memoryToken)}
}

func (s *memoryTokenStore) Issue(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = memoryToken{userID: userID, expiresAt: time.Now().Add(s.ttl)}
	return token, nil
}

func (s *memoryTokenStore) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok {
		return "", ErrTokenNotFound
	}
	delete(s.tokens, token)
	if time.Now().After(rec.expiresAt) {
		return "", ErrTokenNotFound
	}
	return rec.userID, nil
}
