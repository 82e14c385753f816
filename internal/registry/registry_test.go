package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"framekit/internal/eventbus"
	"framekit/internal/frame"
)

type probe struct {
	name      string
	log       *[]string
	initErr   error
	wireErr   error
	removeErr error
	onInit    func()
	onWire    func(*Registry)
	panicIn   Phase
}

func (p *probe) Name() string { return p.name }

func (p *probe) Init(context.Context) error {
	*p.log = append(*p.log, "init:"+p.name)
	if p.panicIn == PhaseInit {
		panic("boom")
	}
	if p.onInit != nil {
		p.onInit()
	}
	return p.initErr
}

func (p *probe) CrossWire(_ context.Context, r *Registry) error {
	*p.log = append(*p.log, "wire:"+p.name)
	if p.onWire != nil {
		p.onWire(r)
	}
	return p.wireErr
}

func (p *probe) OnRemove(context.Context) error {
	*p.log = append(*p.log, "remove:"+p.name)
	return p.removeErr
}

type named string

func (n named) Name() string { return string(n) }

func TestInitRunsPhasesInOrder(t *testing.T) {
	var log []string
	r := New()
	r.AddList(
		&probe{name: "a", log: &log},
		named("plain"),
		&probe{name: "b", log: &log},
	)

	require.NoError(t, r.Init(context.Background()))
	require.Equal(t, []string{"init:a", "init:b", "wire:a", "wire:b"}, log)
	require.Equal(t, []string{"a", "plain", "b"}, r.Names())
	require.ErrorIs(t, r.Init(context.Background()), ErrAlreadyInitialized)
}

func TestCrossWireSeesEveryInitializedPeer(t *testing.T) {
	var log []string
	r := New()
	var seen []string
	r.Add(&probe{name: "a", log: &log, onWire: func(r *Registry) {
		for _, s := range r.Registered() {
			seen = append(seen, s.Name())
		}
	}})
	r.Add(&probe{name: "b", log: &log})

	require.NoError(t, r.Init(context.Background()))
	require.Equal(t, []string{"a", "b"}, seen)
	require.Equal(t, []string{"init:a", "init:b", "wire:a", "wire:b"}, log)
}

func TestAddDuringInitJoinsPass(t *testing.T) {
	var log []string
	r := New()
	late := &probe{name: "late", log: &log}
	r.Add(&probe{name: "a", log: &log, onInit: func() { r.Add(late) }})

	require.NoError(t, r.Init(context.Background()))
	require.Equal(t, []string{"init:a", "init:late", "wire:a", "wire:late"}, log)
}

func TestInitFailureAborts(t *testing.T) {
	cases := []struct {
		name  string
		a, b  *probe
		phase Phase
		want  []string
	}{
		{
			name:  "init",
			a:     &probe{name: "a", initErr: errors.New("nope")},
			b:     &probe{name: "b"},
			phase: PhaseInit,
			want:  []string{"init:a"},
		},
		{
			name:  "crosswire",
			a:     &probe{name: "a"},
			b:     &probe{name: "b", wireErr: errors.New("nope")},
			phase: PhaseCrossWire,
			want:  []string{"init:a", "init:b", "wire:a", "wire:b"},
		},
		{
			name:  "panic",
			a:     &probe{name: "a", panicIn: PhaseInit},
			b:     &probe{name: "b"},
			phase: PhaseInit,
			want:  []string{"init:a"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var log []string
			tc.a.log, tc.b.log = &log, &log
			r := New()
			r.AddList(tc.a, tc.b)

			err := r.Init(context.Background())
			var le *LifecycleError
			require.ErrorAs(t, err, &le)
			require.Equal(t, tc.phase, le.Phase)
			require.Equal(t, tc.want, log)
		})
	}
}

func TestInitHonoursCancelledContext(t *testing.T) {
	var log []string
	r := New()
	r.Add(&probe{name: "a", log: &log})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, r.Init(ctx), context.Canceled)
	require.Empty(t, log)
}

func TestReAddKeepsSlotAndSkipsRemoveHook(t *testing.T) {
	var log []string
	r := New()
	first := &probe{name: "a", log: &log}
	second := &probe{name: "a", log: &log}
	r.AddList(first, named("b"))
	require.Same(t, second, r.Add(second))

	got, ok := r.Get("a")
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, []string{"a", "b"}, r.Names())
	require.Empty(t, log)
}

func TestRemove(t *testing.T) {
	var log []string
	r := New()
	r.AddList(&probe{name: "a", log: &log, removeErr: errors.New("close failed")}, named("b"))

	err := r.Remove(context.Background(), "a")
	require.Error(t, err)
	var le *LifecycleError
	require.ErrorAs(t, err, &le)
	require.Equal(t, PhaseRemove, le.Phase)
	require.Equal(t, []string{"remove:a"}, log)
	require.False(t, r.IsInitialized("a"))
	require.Equal(t, []string{"b"}, r.Names())

	require.NoError(t, r.Remove(context.Background(), "missing"))
	require.NoError(t, r.Remove(context.Background(), "b"))
	require.Zero(t, r.Len())
}

func TestShutdownReverseOrder(t *testing.T) {
	var log []string
	r := New()
	r.AddList(
		&probe{name: "a", log: &log},
		&probe{name: "b", log: &log, removeErr: errors.New("x")},
		&probe{name: "c", log: &log},
	)
	err := r.Shutdown(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"remove:c", "remove:b", "remove:a"}, log)
	require.Zero(t, r.Len())
}

func TestRoleLookup(t *testing.T) {
	r := New()
	_, err := r.Ticker()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.EqualError(t, err, "Ticker plugin is not initialized")

	r.Add(named(RoleDevTools))
	_, err = Role[*frame.Scheduler](r, RoleDevTools)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotInitialized)

	sched := frame.NewScheduler(frame.NewManualHost(), frame.Config{})
	r.Add(sched)
	got, err := r.Ticker()
	require.NoError(t, err)
	require.Same(t, sched, got)
}

func TestRemovingTickerDestroysIt(t *testing.T) {
	r := New()
	sched := frame.NewScheduler(frame.NewManualHost(), frame.Config{})
	r.Add(sched)
	sched.Start()

	require.NoError(t, r.Remove(context.Background(), RoleTicker))
	require.True(t, sched.IsDestroyed())
}

func TestLifecycleEventsPublished(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16, "registry.")
	defer unsub()

	var log []string
	r := New(WithBus(bus))
	r.Add(&probe{name: "a", log: &log})
	require.NoError(t, r.Init(context.Background()))
	require.NoError(t, r.Remove(context.Background(), "a"))

	var types []string
	timeout := time.After(time.Second)
	for len(types) < 5 {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("got %v", types)
		}
	}
	require.Equal(t, []string{EventAdded, EventInit, EventCrossWire, EventReady, EventRemoved}, types)
}
