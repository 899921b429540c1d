package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-channel/internal/auth"
	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(dir, "wirechat.db")
	cfg.SnapshotPath = filepath.Join(dir, "snapshots")
	cfg.JWTSecret = "test-secret"
	return &cfg
}

func TestChannelOptionsFollowConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.WindowSoftCap = 10
	cfg.WindowTrimTo = 4
	cfg.TypingTimeout = 3 * time.Second

	opts := ChannelOptions(cfg)
	require.Equal(t, 10, opts.WindowSoftCap)
	require.Equal(t, 4, opts.WindowTrimTo)
	require.Equal(t, 3*time.Second, opts.TypingTimeout)
	require.Equal(t, cfg.MaxContentLength, opts.MaxContentLength)
}

func TestJWTConfigMintsVerifiableTokens(t *testing.T) {
	cfg := testConfig(t)

	token, err := auth.GenerateToken(JWTConfig(cfg), "alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, auth.NewVerifier(JWTConfig(cfg)).Verify(token, "alice"))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, log.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
