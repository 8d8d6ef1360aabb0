// Package session keeps the citizen's session token.
//
// The token is shared by the HTTP server, the in-process workflows and the
// Temporal worker, so it lives behind TokenStore with an in-memory and a
// Redis implementation.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/domain"
)

// TokenStore stores one token per session ID.
// Get returns an error wrapping domain.ErrNoCredential when no token is stored.
type TokenStore interface {
	Get(ctx context.Context, sessionID string) (domain.SessionToken, error)
	Set(ctx context.Context, sessionID string, token domain.SessionToken, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewTokenStore builds the store selected by cfg.
func NewTokenStore(cfg config.SessionConfig) (TokenStore, error) {
	switch cfg.Store {
	case "", config.SessionStoreMemory:
		return NewMemoryStore(), nil
	case config.SessionStoreRedis:
		return NewRedisStoreFromConfig(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// Bootstrap stores the configured token, if any, under the configured session ID.
func Bootstrap(ctx context.Context, store TokenStore, cfg config.SessionConfig) error {
	token := domain.SessionToken(cfg.Token)
	if token.IsZero() {
		return nil
	}
	if err := store.Set(ctx, cfg.ID, token, cfg.TTL); err != nil {
		return fmt.Errorf("storing bootstrap token: %w", err)
	}
	return nil
}

func noCredential(sessionID string) error {
	return fmt.Errorf("session %s: %w", sessionID, domain.ErrNoCredential)
}
