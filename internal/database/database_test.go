package database

import (
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/config"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "db.internal",
		Port:              6432,
		User:              "profile",
		Password:          "s3cr/t",
		Name:              "profile_service",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          8,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   10 * time.Minute,
		HealthCheckPeriod: 15 * time.Second,
		ConnectTimeout:    3 * time.Second,
	}
}

func TestPoolConfig(t *testing.T) {
	t.Run("copies pool settings", func(t *testing.T) {
		pc, err := PoolConfig(testDatabaseConfig())
		require.NoError(t, err)

		assert.Equal(t, int32(8), pc.MaxConns)
		assert.Equal(t, int32(1), pc.MinConns)
		assert.Equal(t, time.Hour, pc.MaxConnLifetime)
		assert.Equal(t, 10*time.Minute, pc.MaxConnIdleTime)
		assert.Equal(t, 15*time.Second, pc.HealthCheckPeriod)
		assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	})

	t.Run("decodes escaped credentials", func(t *testing.T) {
		pc, err := PoolConfig(testDatabaseConfig())
		require.NoError(t, err)

		assert.Equal(t, "db.internal", pc.ConnConfig.Host)
		assert.Equal(t, uint16(6432), pc.ConnConfig.Port)
		assert.Equal(t, "profile", pc.ConnConfig.User)
		assert.Equal(t, "s3cr/t", pc.ConnConfig.Password)
		assert.Equal(t, "profile_service", pc.ConnConfig.Database)
	})

	t.Run("rejects an unknown ssl mode", func(t *testing.T) {
		cfg := testDatabaseConfig()
		cfg.SSLMode = "sometimes"

		_, err := PoolConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse database config")
	})
}

func TestDB_CloseWithoutPool(t *testing.T) {
	db := &DB{logger: zerolog.Nop()}
	assert.NotPanics(t, db.Close)
}

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("nil database", func(t *testing.T) {
		m, err := NewMigrator(nil, "migrations", logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("database without pool", func(t *testing.T) {
		m, err := NewMigrator(&DB{}, "migrations", logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database is required")
	})
}

func TestIgnoreNoChange(t *testing.T) {
	assert.NoError(t, ignoreNoChange(nil))
	assert.NoError(t, ignoreNoChange(migrate.ErrNoChange))
	assert.Error(t, ignoreNoChange(assert.AnError))
}
