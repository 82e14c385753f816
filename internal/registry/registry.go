package registry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"framekit/internal/eventbus"
	"framekit/internal/frame"
	logx "framekit/pkg/logx"
)

// Well-known subsystem names.
const (
	RoleTicker   = frame.Name
	RoleDevTools = "DevTools"
	RoleRenderer = "Renderer"
	RolePreload  = "Preload"
	RoleUI       = "UI"
)

// Event types published on the bus.
const (
	EventAdded     = "registry.added"
	EventInit      = "registry.init"
	EventCrossWire = "registry.crosswire"
	EventReady     = "registry.ready"
	EventFailed    = "registry.failed"
	EventRemoved   = "registry.removed"
)

// Subsystem is anything with a unique name. The lifecycle hooks below are
// optional; a subsystem implementing none of them is just a named entry.
type Subsystem interface {
	Name() string
}

// Initializer runs in the first startup pass.
type Initializer interface {
	Init(ctx context.Context) error
}

// CrossWirer runs in the second startup pass, after every Init returned.
type CrossWirer interface {
	CrossWire(ctx context.Context, r *Registry) error
}

// Remover is notified synchronously when the subsystem is removed.
type Remover interface {
	OnRemove(ctx context.Context) error
}

type lifecycleEvent struct {
	Subsystem string `json:"subsystem"`
	Phase     string `json:"phase,omitempty"`
	Err       string `json:"err,omitempty"`
	TookMS    int64  `json:"took_ms,omitempty"`
	Count     int    `json:"count,omitempty"`
}

type Option func(*Registry)

func WithLogger(log logx.Logger) Option { return func(r *Registry) { r.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(r *Registry) { r.bus = bus } }

// Registry is an insertion-ordered set of named subsystems with a two-phase
// startup.
//
// Lookups are safe from any goroutine. Hooks run on the caller's goroutine
// without the lock held, so a hook may call back into the registry.
type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]Subsystem

	// startup bookkeeping, keyed by name
	inited map[string]bool
	wired  map[string]bool
	state  initState

	log logx.Logger
	bus eventbus.Bus
}

type initState int

const (
	stateIdle initState = iota
	stateRunning
	stateDone
)

func New(opts ...Option) *Registry {
	r := &Registry{
		items:  map[string]Subsystem{},
		inited: map[string]bool{},
		wired:  map[string]bool{},
	}
	for _, o := range opts {
		o(r)
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	return r
}

func (r *Registry) emit(typ string, data lifecycleEvent) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Add stores s under s.Name() and returns it. Re-adding a name replaces the
// previous instance in place without notifying it.
func (r *Registry) Add(s Subsystem) Subsystem {
	if s == nil {
		return nil
	}
	name := s.Name()
	r.mu.Lock()
	if _, ok := r.items[name]; !ok {
		r.order = append(r.order, name)
	}
	r.items[name] = s
	r.mu.Unlock()

	r.log.Debug("subsystem added", logx.String("subsystem", name))
	r.emit(EventAdded, lifecycleEvent{Subsystem: name})
	return s
}

// AddList adds every subsystem in order and returns them.
func (r *Registry) AddList(list ...Subsystem) []Subsystem {
	out := make([]Subsystem, 0, len(list))
	for _, s := range list {
		if s = r.Add(s); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Get(name string) (Subsystem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[name]
	return s, ok
}

// IsInitialized reports whether name is registered.
func (r *Registry) IsInitialized(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Require returns the subsystem registered under role or a
// *NotInitializedError naming it.
func (r *Registry) Require(role string) (Subsystem, error) {
	s, ok := r.Get(role)
	if !ok {
		return nil, &NotInitializedError{Role: role}
	}
	return s, nil
}

// Role looks up role and asserts its type.
func Role[T any](r *Registry, role string) (T, error) {
	var zero T
	s, err := r.Require(role)
	if err != nil {
		return zero, err
	}
	v, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("registry: %s is %T, want %T", role, s, zero)
	}
	return v, nil
}

// Ticker returns the frame scheduler registered under RoleTicker.
func (r *Registry) Ticker() (*frame.Scheduler, error) {
	return Role[*frame.Scheduler](r, RoleTicker)
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Registered returns the registered subsystems in insertion order.
func (r *Registry) Registered() []Subsystem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subsystem, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Remove deletes name and runs its OnRemove hook. Absent names are ignored.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	s, ok := r.items[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.items, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	var err error
	if rm, ok := s.(Remover); ok {
		err = r.call(name, PhaseRemove, func() error { return rm.OnRemove(ctx) })
	}
	ev := lifecycleEvent{Subsystem: name}
	if err != nil {
		ev.Err = err.Error()
		r.log.Warn("subsystem removal hook failed", logx.String("subsystem", name), logx.Err(err))
	} else {
		r.log.Debug("subsystem removed", logx.String("subsystem", name))
	}
	r.emit(EventRemoved, ev)
	return err
}

// Shutdown removes every subsystem in reverse insertion order and joins the
// hook errors.
func (r *Registry) Shutdown(ctx context.Context) error {
	names := r.Names()
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		if err := r.Remove(ctx, names[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Init runs the two startup passes: every Init hook in insertion order, then
// every CrossWire hook in insertion order. Hooks run one at a time; the
// second pass starts only after the first completed for every subsystem.
// Subsystems added while Init is running join the pass in progress.
//
// The first failing hook aborts startup and is returned as *LifecycleError.
// Init runs at most once.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}
	r.state = stateRunning
	r.mu.Unlock()

	start := time.Now()
	err := r.pass(ctx, PhaseInit, r.inited, func(s Subsystem) (func() error, bool) {
		h, ok := s.(Initializer)
		if !ok {
			return nil, false
		}
		return func() error { return h.Init(ctx) }, true
	})
	if err == nil {
		err = r.pass(ctx, PhaseCrossWire, r.wired, func(s Subsystem) (func() error, bool) {
			h, ok := s.(CrossWirer)
			if !ok {
				return nil, false
			}
			return func() error { return h.CrossWire(ctx, r) }, true
		})
	}

	r.mu.Lock()
	r.state = stateDone
	count := len(r.order)
	r.mu.Unlock()

	if err != nil {
		r.log.Error("registry startup failed", logx.Err(err))
		ev := lifecycleEvent{Err: err.Error()}
		var le *LifecycleError
		if errors.As(err, &le) {
			ev.Subsystem = le.Subsystem
			ev.Phase = string(le.Phase)
		}
		r.emit(EventFailed, ev)
		return err
	}

	took := time.Since(start)
	r.log.Info("registry ready", logx.Int("subsystems", count), logx.Duration("took", took))
	r.emit(EventReady, lifecycleEvent{Count: count, TookMS: took.Milliseconds()})
	return nil
}

// pass visits registered names in order until every one is marked done.
// The order slice is re-read after each hook so additions made by a hook are
// picked up and removals are honoured.
func (r *Registry) pass(ctx context.Context, phase Phase, done map[string]bool, hook func(Subsystem) (func() error, bool)) error {
	evType := EventInit
	if phase == PhaseCrossWire {
		evType = EventCrossWire
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, s, ok := r.next(done)
		if !ok {
			return nil
		}
		fn, has := hook(s)
		if !has {
			continue
		}
		start := time.Now()
		if err := r.call(name, phase, fn); err != nil {
			return err
		}
		took := time.Since(start)
		r.log.Debug("subsystem hook done", logx.String("subsystem", name), logx.String("phase", string(phase)), logx.Duration("took", took))
		r.emit(evType, lifecycleEvent{Subsystem: name, Phase: string(phase), TookMS: took.Milliseconds()})
	}
}

func (r *Registry) next(done map[string]bool) (string, Subsystem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		if done[name] {
			continue
		}
		done[name] = true
		return name, r.items[name], true
	}
	return "", nil, false
}

func (r *Registry) call(name string, phase Phase, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("subsystem hook panicked",
				logx.String("subsystem", name),
				logx.String("phase", string(phase)),
				logx.Any("panic", p),
				logx.Stack(string(debug.Stack())),
			)
			err = &LifecycleError{Subsystem: name, Phase: phase, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if err := fn(); err != nil {
		return &LifecycleError{Subsystem: name, Phase: phase, Err: err}
	}
	return nil
}
