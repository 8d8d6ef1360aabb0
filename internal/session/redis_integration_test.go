//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/helixir/profile-service/internal/domain"
)

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "test:session:")
	require.NoError(t, store.Ping(ctx))
	return store
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNoCredential)

	require.NoError(t, s.Set(ctx, "s1", "tok", 0))
	tok, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionToken("tok"), tok)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)

	require.NoError(t, s.Set(ctx, "s1", "tok", time.Second))
	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "s1")
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}
