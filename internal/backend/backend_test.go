package backend

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:    "postgres",
		DatabaseURL:    "postgres://localhost/fintrack",
		AMQPURL:        "amqp://localhost",
		AMQPExchange:   "fintrack",
		AMQPRoutingKey: "transaction.posted",

		CategoryCacheTTL: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.Equal(t, time.Minute, cfg.CategoryCacheTTL)
	assert.Equal(t, "postgres://localhost/fintrack", cfg.DatabaseURL)
	assert.Equal(t, "transaction.posted", cfg.AMQPRoutingKey)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: "sheets"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: PostgresBackend}.Validate())
	assert.Error(t, Config{Type: MemoryBackend, AMQPURL: "amqp://x"}.Validate())
	assert.Equal(t, []string{"sqlite", "postgres", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, res.Store)
	assert.Nil(t, res.Publisher)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackendWithCategoryCache(t *testing.T) {
	f := NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, CategoryCacheTTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &cache.CategoryStore{}, res.Store)
	assert.NoError(t, res.Store.Ping(context.Background()))
	assert.NoError(t, res.Cleanup())
}

func TestCreateSQLiteBackend(t *testing.T) {
	f := NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))
	res, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "data", "fintrack.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteRepository{}, res.Store)
	assert.NoError(t, res.Store.Ping(context.Background()))
	assert.NoError(t, res.Cleanup())
}

func TestUnreachableBrokerIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	f := NewFactory(log.New(log.Config{Output: &logs}))
	f.dialPublisher = func(context.Context, string, string, string) (*amqp.Publisher, error) {
		return nil, errors.New("connection refused")
	}

	res, err := f.CreateBackend(context.Background(), Config{
		Type:           MemoryBackend,
		AMQPURL:        "amqp://localhost:1/",
		AMQPExchange:   "fintrack",
		AMQPRoutingKey: "transaction.posted",
	})
	require.NoError(t, err)
	// A nil *amqp.Publisher must not leak in as a non-nil interface.
	assert.Nil(t, res.Publisher)
	assert.Contains(t, logs.String(), "continuing without events")
	assert.NoError(t, res.Cleanup())
}
