package frame

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "framekit/pkg/logx"
)

func TestTimeSourceRepeatsUntilStopped(t *testing.T) {
	host := NewManualHost()
	var ticks []time.Duration
	src := NewTimeSource(host, func(ts time.Duration) { ticks = append(ticks, ts) })

	src.Start()
	src.Start()
	require.Equal(t, 1, host.Pending())

	host.Run(3, 10*ms)
	src.Stop()
	src.Stop()
	host.Run(3, 10*ms)

	require.Equal(t, []time.Duration{10 * ms, 20 * ms, 30 * ms}, ticks)
	require.False(t, src.Running())
}

func TestTimeSourceSetCallbackAndDestroy(t *testing.T) {
	host := NewManualHost()
	var got []string
	src := NewTimeSource(host, func(time.Duration) { got = append(got, "first") })
	src.Start()
	host.Step(ms)

	src.SetCallback(func(time.Duration) { got = append(got, "second") })
	host.Step(ms)

	src.Destroy()
	src.Start()
	host.Step(ms)

	require.Equal(t, []string{"first", "second"}, got)
}

func TestTimeSourceRestartInsideCallback(t *testing.T) {
	host := NewManualHost()
	var src *TimeSource
	n := 0
	src = NewTimeSource(host, func(time.Duration) {
		n++
		src.Stop()
		src.Start()
	})
	src.Start()
	host.Run(3, ms)

	require.Equal(t, 3, n)
	require.Equal(t, 1, host.Pending())
}

func TestLoopHostFramesAndDo(t *testing.T) {
	host := NewLoopHost(200, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx) }()

	s := NewScheduler(host, Config{})
	require.NoError(t, host.Do(ctx, s.Start))

	frames := make(chan struct{}, 64)
	require.NoError(t, host.Do(ctx, func() {
		s.Add(func(time.Duration, time.Duration) {
			select {
			case frames <- struct{}{}:
			default:
			}
		})
	}))

	for i := 0; i < 3; i++ {
		select {
		case <-frames:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}

	var running bool
	require.NoError(t, host.Do(ctx, func() { running = s.IsRunning() }))
	require.True(t, running)

	cancel()
	require.NoError(t, <-done)
	require.ErrorIs(t, host.Do(context.Background(), func() {}), ErrLoopClosed)
	require.False(t, host.Post(func() {}))
}

func TestLoopHostVisibility(t *testing.T) {
	host := NewLoopHost(100, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = host.Run(ctx) }()

	seen := make(chan bool, 4)
	cancelVis := host.OnVisibilityChange(func(hidden bool) { seen <- hidden })

	require.True(t, host.SetHidden(true))
	require.True(t, host.SetHidden(true))
	require.True(t, host.SetHidden(false))

	require.True(t, <-seen)
	require.False(t, <-seen)

	cancelVis()
	require.True(t, host.SetHidden(true))
	require.NoError(t, host.Do(ctx, func() {}))
	require.Empty(t, seen)
}
