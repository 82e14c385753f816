// Package devtools is the diagnostics subsystem. It samples frame rate
// statistics from the Ticker, warns on sustained low FPS, logs registry
// lifecycle events and persists its panel state and the latest stats
// snapshot.
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"framekit/internal/config"
	"framekit/internal/eventbus"
	"framekit/internal/frame"
	"framekit/internal/registry"
	"framekit/internal/storage"
	logx "framekit/pkg/logx"
)

const (
	StateKey    = "devtools.state"
	SnapshotKey = "devtools.stats"

	// EventFPSLow is published once when the frame rate stays under the
	// warning threshold for the configured duration.
	EventFPSLow = "devtools.fps_low"
)

type Config struct {
	// Schedule is a cron spec for persisting stats snapshots ("" = never).
	Schedule string
	// WarnFPS enables the FPS watch when > 0.
	WarnFPS float64
	WarnFor time.Duration
}

// Deps are the collaborators DevTools needs. Bus, Store and Loop are
// optional.
type Deps struct {
	Log   logx.Logger
	Bus   eventbus.Bus
	Store storage.Store
	// Loop marshals snapshot reads onto the frame loop goroutine.
	Loop frame.Dispatcher
}

// State is the persisted panel state.
type State struct {
	Stats bool `json:"stats"`
}

// Snapshot is the persisted stats record.
type Snapshot struct {
	At      time.Time   `json:"at"`
	Ticker  frame.Stats `json:"ticker"`
	Samples uint64      `json:"samples"`
	MinFPS  float64     `json:"min_fps"`
	MaxFPS  float64     `json:"max_fps"`
	AvgFPS  float64     `json:"avg_fps"`
}

type FPSLowEvent struct {
	FPS       float64       `json:"fps"`
	Threshold float64       `json:"threshold"`
	For       time.Duration `json:"for"`
}

type Plugin struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	// loop-owned
	state   State
	ticker  *frame.Scheduler
	probeID frame.CallbackID
	watchID frame.CallbackID
	probe   fpsProbe
	watch   fpsWatch

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	unsub  func()
	wg     sync.WaitGroup

	mu   sync.Mutex
	last Snapshot
}

func New(cfg Config, deps Deps) *Plugin {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Plugin{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With(logx.String("comp", "devtools")),
	}
}

func (p *Plugin) Name() string { return registry.RoleDevTools }

// Init loads the persisted panel state. A corrupt record is logged and
// replaced by the default state.
func (p *Plugin) Init(ctx context.Context) error {
	if p.deps.Store == nil {
		return nil
	}
	b, ok, err := p.deps.Store.Get(ctx, StateKey)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return nil
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		p.log.Warn("persisted state unreadable; using defaults", logx.Err(err))
		return nil
	}
	p.state = st
	p.log.Debug("state loaded", logx.Bool("stats", st.Stats))
	return nil
}

// CrossWire attaches to the Ticker (when registered), the bus and the
// snapshot schedule.
func (p *Plugin) CrossWire(ctx context.Context, r *registry.Registry) error {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	ticker, err := r.Ticker()
	switch {
	case err == nil:
		p.ticker = ticker
		if p.state.Stats {
			p.attachProbe()
		}
		if p.cfg.WarnFPS > 0 {
			p.watch = fpsWatch{threshold: p.cfg.WarnFPS, window: p.cfg.WarnFor, lowSince: -1}
			p.watchID = ticker.Add(p.watchFrame)
		}
	case errors.Is(err, registry.ErrNotInitialized):
		p.log.Info("no ticker registered; frame probes disabled")
	default:
		return err
	}

	if p.deps.Bus != nil {
		ch, unsub := p.deps.Bus.Subscribe(64, "registry.", "devtools.")
		p.unsub = unsub
		p.wg.Add(1)
		go p.logEvents(ch)
	}

	if p.cfg.Schedule != "" {
		c := cron.New(cron.WithParser(config.CronParser))
		if _, err := c.AddFunc(p.cfg.Schedule, p.snapshotJob); err != nil {
			return fmt.Errorf("stats schedule %q: %w", p.cfg.Schedule, err)
		}
		c.Start()
		p.cron = c
	}
	return nil
}

// OnRemove detaches everything and saves the panel state.
func (p *Plugin) OnRemove(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.cron != nil {
		done := p.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
		}
		p.cron = nil
	}
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	p.wg.Wait()

	if p.ticker != nil {
		p.detachProbe()
		if p.watchID != 0 {
			p.ticker.Remove(p.watchID)
			p.watchID = 0
		}
		p.ticker = nil
	}
	return p.saveState(ctx)
}

// Stats reports whether the stats probe is enabled.
func (p *Plugin) Stats() bool { return p.state.Stats }

// SetStats toggles the stats probe and persists the choice. It must run on
// the frame loop.
func (p *Plugin) SetStats(ctx context.Context, on bool) error {
	if p.state.Stats == on {
		return nil
	}
	p.state.Stats = on
	if on {
		p.attachProbe()
	} else {
		p.detachProbe()
	}
	return p.saveState(ctx)
}

// Snapshot reads the current stats. It must run on the frame loop.
func (p *Plugin) Snapshot() Snapshot {
	s := Snapshot{At: time.Now()}
	if p.ticker != nil {
		s.Ticker = p.ticker.Stats()
	}
	s.Samples = p.probe.n
	s.MinFPS, s.MaxFPS, s.AvgFPS = p.probe.min, p.probe.max, p.probe.avg()
	return s
}

// Last returns the most recently persisted snapshot.
func (p *Plugin) Last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// PersistSnapshot reads a snapshot on the loop and writes it to the store.
func (p *Plugin) PersistSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	read := func() { snap = p.Snapshot() }
	if p.deps.Loop != nil {
		if err := p.deps.Loop.Do(ctx, read); err != nil {
			return Snapshot{}, err
		}
	} else {
		read()
	}

	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()

	if p.deps.Store == nil {
		return snap, nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return snap, err
	}
	return snap, p.deps.Store.Put(ctx, SnapshotKey, b)
}

func (p *Plugin) snapshotJob() {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	snap, err := p.PersistSnapshot(ctx)
	if err != nil {
		if p.ctx.Err() == nil {
			p.log.Warn("stats snapshot failed", logx.Err(err))
		}
		return
	}
	p.log.Debug("stats snapshot",
		logx.Float64("fps", snap.Ticker.FPS),
		logx.Float64("min_fps", snap.MinFPS),
		logx.Float64("max_fps", snap.MaxFPS),
		logx.Float64("avg_fps", snap.AvgFPS),
		logx.Int("callbacks", snap.Ticker.Callbacks),
	)
}

func (p *Plugin) saveState(ctx context.Context) error {
	if p.deps.Store == nil {
		return nil
	}
	b, err := json.Marshal(p.state)
	if err != nil {
		return err
	}
	if err := p.deps.Store.Put(ctx, StateKey, b); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (p *Plugin) logEvents(ch <-chan eventbus.Event) {
	defer p.wg.Done()
	for e := range ch {
		p.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
	}
}

func (p *Plugin) attachProbe() {
	if p.ticker == nil || p.probeID != 0 {
		return
	}
	p.probe = fpsProbe{}
	p.probeID = p.ticker.Add(p.probeFrame)
}

func (p *Plugin) detachProbe() {
	if p.ticker == nil || p.probeID == 0 {
		return
	}
	p.ticker.Remove(p.probeID)
	p.probeID = 0
}

func (p *Plugin) probeFrame(time.Duration, time.Duration) {
	p.probe.add(p.ticker.FPS())
}

func (p *Plugin) watchFrame(ts, _ time.Duration) {
	fps := p.ticker.FPS()
	if !p.watch.observe(ts, fps) {
		return
	}
	p.ticker.Remove(p.watchID)
	p.watchID = 0
	p.log.Warn("frame rate below threshold",
		logx.Float64("fps", fps),
		logx.Float64("threshold", p.watch.threshold),
		logx.Duration("for", p.watch.window),
	)
	if p.deps.Bus != nil {
		p.deps.Bus.Publish(eventbus.Event{Type: EventFPSLow, Data: FPSLowEvent{
			FPS: fps, Threshold: p.watch.threshold, For: p.watch.window,
		}})
	}
}
