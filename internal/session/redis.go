package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/domain"
)

// DefaultKeyPrefix is prepended to session IDs when no prefix is configured.
const DefaultKeyPrefix = "profile-service:session:"

// RedisStore keeps tokens in Redis so that every process sees the same session.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a store over an existing client. The caller owns the
// client lifecycle.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromConfig creates a client from cfg and wraps it.
func NewRedisStoreFromConfig(cfg config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStore(client, cfg.KeyPrefix)
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Get returns the token of the session.
func (r *RedisStore) Get(ctx context.Context, sessionID string) (domain.SessionToken, error) {
	val, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", noCredential(sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("redis get session %s: %w", sessionID, err)
	}

	token := domain.SessionToken(val)
	if token.IsZero() {
		return "", noCredential(sessionID)
	}
	return token, nil
}

// Set stores token. A ttl of zero keeps it until deleted.
func (r *RedisStore) Set(ctx context.Context, sessionID string, token domain.SessionToken, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(sessionID), string(token), ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the token of the session.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", sessionID, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client when it is closable.
func (r *RedisStore) Close() error {
	if c, ok := r.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
