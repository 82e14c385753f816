package systemd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoSocketIsNoop(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	sent, err := Ready()
	require.NoError(t, err)
	require.False(t, sent)

	d, err := WatchdogInterval()
	require.NoError(t, err)
	require.Zero(t, d)
}

func TestWatchdogInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "2000000")
	t.Setenv("WATCHDOG_PID", "")
	d, err := WatchdogInterval()
	require.NoError(t, err)
	require.Equal(t, time.Second, d)
}

func TestWatchdogStopsWithContext(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	pings := 0
	require.NoError(t, Watchdog(ctx, 5*time.Millisecond, func() bool { pings++; return true }))
	require.Positive(t, pings)
	require.NoError(t, Watchdog(context.Background(), 0, nil))
}
