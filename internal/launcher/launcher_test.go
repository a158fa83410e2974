package launcher

import (
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stress-client/internal/logger"
)

func TestRunRejectsZeroClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 0
	_, err := New(cfg).Run(context.Background())
	assert.Error(t, err)
}

func TestRunFailsWhenBinaryIsMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 2
	cfg.Binary = filepath.Join(t.TempDir(), "no-such-binary")
	cfg.OutputDir = t.TempDir()

	l := New(cfg)
	l.SetLogger(logger.New(io.Discard, logger.LevelInfo))
	_, err := l.Run(context.Background())
	assert.Error(t, err)
}

func TestRunFailsOnProtocolViolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 1
	cfg.OutputDir = t.TempDir()
	cfg.ReadyTimeout = 5 * time.Second
	cfg.Stderr = io.Discard

	l := New(cfg)
	l.SetLogger(logger.New(io.Discard, logger.LevelInfo))
	// readyの代わりに別の行を書く子プロセス
	l.SetCommand(func(string, ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "echo hello; exec sleep 5")
	})

	start := time.Now()
	_, err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
	assert.Less(t, time.Since(start), 4*time.Second, "children must be killed on failure")
}

func TestRunFailsOnReadyTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 1
	cfg.OutputDir = t.TempDir()
	cfg.ReadyTimeout = 100 * time.Millisecond
	cfg.Stderr = io.Discard

	l := New(cfg)
	l.SetLogger(logger.New(io.Discard, logger.LevelInfo))
	l.SetCommand(func(string, ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "exec sleep 5")
	})

	_, err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
