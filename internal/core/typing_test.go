package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type firedTimer struct {
	userID string
	token  uint64
}

func TestTypingStartIsNotRefreshed(t *testing.T) {
	fired := make(chan firedTimer, 4)
	tr := NewTypingTracker(50*time.Millisecond, func(userID string, token uint64) {
		fired <- firedTimer{userID, token}
	})

	require.True(t, tr.Start("alice"))
	require.False(t, tr.Start("alice"), "second start while typing is a no-op")
	require.Contains(t, tr.entries, "alice")

	select {
	case f := <-fired:
		require.Equal(t, "alice", f.userID)
		require.True(t, tr.Expire(f.userID, f.token))
	case <-time.After(time.Second):
		t.Fatal("typing timer did not fire")
	}
	require.NotContains(t, tr.entries, "alice")

	select {
	case f := <-fired:
		t.Fatalf("unexpected second timer: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTypingStopCancelsTimer(t *testing.T) {
	fired := make(chan firedTimer, 1)
	tr := NewTypingTracker(30*time.Millisecond, func(userID string, token uint64) {
		fired <- firedTimer{userID, token}
	})

	require.False(t, tr.Stop("alice"), "stop while idle is a no-op")
	require.True(t, tr.Start("alice"))
	require.True(t, tr.Stop("alice"))

	select {
	case f := <-fired:
		t.Fatalf("stopped timer fired: %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTypingExpireIgnoresStaleToken(t *testing.T) {
	tr := NewTypingTracker(time.Hour, func(string, uint64) {})
	t.Cleanup(tr.StopAll)

	require.True(t, tr.Start("alice"))
	first := tr.entries["alice"].token
	require.True(t, tr.Stop("alice"))
	require.True(t, tr.Start("alice"))

	require.False(t, tr.Expire("alice", first), "expiry of a superseded timer must be ignored")
	require.Contains(t, tr.entries, "alice")
	require.True(t, tr.Expire("alice", tr.entries["alice"].token))
}
