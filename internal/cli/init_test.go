package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINTRACK_TEST_VALUE=from-file\n"), 0o600))

	t.Setenv("FINTRACK_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("FINTRACK_TEST_VALUE"))

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("FINTRACK_TEST_VALUE"))
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FINTRACK_TEST_VALUE=from-file\n"), 0o600))

	t.Setenv("FINTRACK_TEST_VALUE", "from-env")
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("FINTRACK_TEST_VALUE"))
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	require.NotNil(t, logger)
	assert.Equal(t, log.ComponentApp, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestGracefulShutdownRunsEveryStep(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})

	var order []string
	boom := errors.New("boom")
	err := GracefulShutdown(logger, time.Second,
		func(context.Context) error { order = append(order, "http"); return nil },
		nil,
		func(context.Context) error { order = append(order, "amqp"); return boom },
		func(context.Context) error { order = append(order, "store"); return nil },
	)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http", "amqp", "store"}, order)
	assert.Contains(t, buf.String(), "Shutdown complete")
}

func TestSignalContextCancelsWithParent(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := SignalContext(parent, log.New(log.Config{Output: &bytes.Buffer{}}))
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
