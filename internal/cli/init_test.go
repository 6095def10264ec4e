package cli

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PRICEWATCH_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PRICEWATCH_TEST_VALUE") })

	LoadEnvFile(path)
	assert.Equal(t, "from-dotenv", os.Getenv("PRICEWATCH_TEST_VALUE"))

	// Missing files are ignored.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DataBackend)

	t.Setenv("DATA_BACKEND", "postgres")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "invalid data backend")
}

func TestSignalContext(t *testing.T) {
	ctx, cancel := SignalContext(context.Background(), log.Discard())
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}
