package devtools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"framekit/internal/eventbus"
	"framekit/internal/frame"
	"framekit/internal/registry"
	"framekit/internal/storage"
)

const ms = time.Millisecond

type rig struct {
	host  *frame.ManualHost
	sched *frame.Scheduler
	store storage.Store
	bus   eventbus.Bus
	reg   *registry.Registry
	dev   *Plugin
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	r := &rig{
		host:  frame.NewManualHost(),
		store: storage.NewMemory(),
		bus:   eventbus.New(),
	}
	r.sched = frame.NewScheduler(r.host, frame.Config{})
	r.reg = registry.New(registry.WithBus(r.bus))
	r.dev = New(cfg, Deps{Bus: r.bus, Store: r.store, Loop: r.host})
	return r
}

func (r *rig) start(t *testing.T) {
	t.Helper()
	r.reg.AddList(r.sched, r.dev)
	require.NoError(t, r.reg.Init(context.Background()))
	r.sched.Start()
}

func TestInitLoadsState(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.store.Put(context.Background(), StateKey, []byte(`{"stats":true}`)))
	r.start(t)
	defer r.reg.Shutdown(context.Background())

	require.True(t, r.dev.Stats())
	require.Equal(t, 1, r.sched.Len()) // probe attached, no watch
}

func TestInitIgnoresCorruptState(t *testing.T) {
	r := newRig(t, Config{})
	require.NoError(t, r.store.Put(context.Background(), StateKey, []byte(`{not json`)))
	require.NoError(t, r.dev.Init(context.Background()))
	require.False(t, r.dev.Stats())
}

func TestWithoutTicker(t *testing.T) {
	reg := registry.New()
	dev := New(Config{WarnFPS: 30}, Deps{})
	reg.Add(dev)
	require.NoError(t, reg.Init(context.Background()))
	require.NoError(t, dev.SetStats(context.Background(), true))

	snap, err := dev.PersistSnapshot(context.Background())
	require.NoError(t, err)
	require.Zero(t, snap.Samples)
	require.NoError(t, reg.Shutdown(context.Background()))
}

func TestStatsProbe(t *testing.T) {
	r := newRig(t, Config{})
	r.start(t)
	ctx := context.Background()

	r.host.Run(3, 20*ms)
	require.Zero(t, r.dev.Snapshot().Samples)

	require.NoError(t, r.dev.SetStats(ctx, true))
	r.host.Run(2, 20*ms) // 50 fps
	r.host.Run(2, 10*ms) // 100 fps

	snap := r.dev.Snapshot()
	require.Equal(t, uint64(4), snap.Samples)
	require.InDelta(t, 50, snap.MinFPS, 0.001)
	require.InDelta(t, 100, snap.MaxFPS, 0.001)
	require.InDelta(t, 75, snap.AvgFPS, 0.001)

	b, ok, err := r.store.Get(ctx, StateKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"stats":true}`, string(b))

	require.NoError(t, r.dev.SetStats(ctx, false))
	require.Zero(t, r.sched.Len())
	require.NoError(t, r.reg.Shutdown(ctx))
}

func TestPersistSnapshot(t *testing.T) {
	r := newRig(t, Config{})
	r.start(t)
	ctx := context.Background()
	require.NoError(t, r.dev.SetStats(ctx, true))
	r.host.Run(5, 20*ms)

	snap, err := r.dev.PersistSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, snap, r.dev.Last())
	require.Equal(t, uint64(5), snap.Ticker.Frames)

	b, ok, err := r.store.Get(ctx, SnapshotKey)
	require.NoError(t, err)
	require.True(t, ok)
	var stored Snapshot
	require.NoError(t, json.Unmarshal(b, &stored))
	require.InDelta(t, 50, stored.AvgFPS, 0.001)
	require.NoError(t, r.reg.Shutdown(ctx))
}

func TestFPSWatchFiresOnce(t *testing.T) {
	r := newRig(t, Config{WarnFPS: 30, WarnFor: 100 * ms})
	ch, unsub := r.bus.Subscribe(8, EventFPSLow)
	defer unsub()
	r.start(t)
	require.Equal(t, 1, r.sched.Len())

	r.host.Run(2, 20*ms) // healthy
	r.host.Run(2, 50*ms) // 20 fps, window not yet complete
	require.Empty(t, ch)

	r.host.Run(1, 50*ms)
	require.Len(t, ch, 1)
	e := <-ch
	ev, ok := e.Data.(FPSLowEvent)
	require.True(t, ok)
	require.InDelta(t, 20, ev.FPS, 0.001)
	require.Zero(t, r.sched.Len())

	r.host.Run(10, 50*ms)
	require.Empty(t, ch)
	require.NoError(t, r.reg.Shutdown(context.Background()))
}

func TestFPSWatchResetsOnRecovery(t *testing.T) {
	w := fpsWatch{threshold: 30, window: 100 * ms, lowSince: -1}
	require.False(t, w.observe(50*ms, 20))
	require.False(t, w.observe(100*ms, 20))
	require.False(t, w.observe(110*ms, 60))
	require.False(t, w.observe(160*ms, 20))
	require.False(t, w.observe(200*ms, 20))
	require.True(t, w.observe(260*ms, 20))
	require.False(t, w.observe(400*ms, 20))
}

func TestOnRemoveDetachesAndSaves(t *testing.T) {
	r := newRig(t, Config{WarnFPS: 10, Schedule: "@every 1h"})
	r.start(t)
	ctx := context.Background()
	require.NoError(t, r.dev.SetStats(ctx, true))
	require.Equal(t, 2, r.sched.Len())
	require.NoError(t, r.store.Delete(ctx, StateKey))

	require.NoError(t, r.reg.Remove(ctx, registry.RoleDevTools))
	require.Zero(t, r.sched.Len())
	_, ok, err := r.store.Get(ctx, StateKey)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInvalidScheduleFailsCrossWire(t *testing.T) {
	r := newRig(t, Config{Schedule: "every tuesday"})
	r.reg.AddList(r.sched, r.dev)
	err := r.reg.Init(context.Background())
	var le *registry.LifecycleError
	require.ErrorAs(t, err, &le)
	require.Equal(t, registry.PhaseCrossWire, le.Phase)
	require.Equal(t, registry.RoleDevTools, le.Subsystem)
	require.NoError(t, r.reg.Shutdown(context.Background()))
}
