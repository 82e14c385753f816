// Package heartbeat logs a periodic liveness line driven by a frame Task.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"framekit/internal/eventbus"
	"framekit/internal/frame"
	"framekit/internal/registry"
	logx "framekit/pkg/logx"
)

const (
	Name = "Heartbeat"

	EventBeat = "heartbeat.beat"
)

type Config struct {
	Every time.Duration
	// Beats stops the heartbeat after this many beats (0 = forever).
	Beats int
}

type BeatEvent struct {
	Beat    uint64        `json:"beat"`
	Elapsed time.Duration `json:"elapsed"`
	FPS     float64       `json:"fps"`
}

type Plugin struct {
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	ticker  *frame.Scheduler
	task    *frame.Task
	beats   uint64
	removed bool
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Plugin {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Plugin{cfg: cfg, log: log.With(logx.String("comp", "heartbeat")), bus: bus}
}

func (p *Plugin) Name() string { return Name }

// CrossWire requires the Ticker and arms the first task.
func (p *Plugin) CrossWire(_ context.Context, r *registry.Registry) error {
	if p.cfg.Every <= 0 {
		return fmt.Errorf("heartbeat interval must be > 0, got %s", p.cfg.Every)
	}
	t, err := r.Ticker()
	if err != nil {
		return err
	}
	p.ticker = t
	p.arm()
	return nil
}

// OnRemove disposes the pending task.
func (p *Plugin) OnRemove(context.Context) error {
	p.removed = true
	if p.task != nil {
		p.task.Dispose()
		p.task = nil
	}
	return nil
}

// Beats returns the number of beats so far.
func (p *Plugin) Beats() uint64 { return p.beats }

// Task returns the pending task, nil once finished or removed.
func (p *Plugin) Task() *frame.Task { return p.task }

func (p *Plugin) arm() {
	cfg := frame.TaskConfig{Delay: p.cfg.Every}
	if p.cfg.Beats > 0 {
		cfg.Repeat = p.cfg.Beats - 1
	}
	t := p.ticker.AddTask(cfg)
	t.OnRepeat.Connect(p.beat)
	t.OnComplete.Connect(func(t *frame.Task) {
		p.beat(t)
		if p.cfg.Beats == 0 && !p.removed {
			p.arm()
		}
	})
	t.OnDispose.Connect(func(t *frame.Task) {
		if p.task == t {
			p.task = nil
		}
	})
	p.task = t
}

func (p *Plugin) beat(*frame.Task) {
	p.beats++
	ev := BeatEvent{Beat: p.beats, Elapsed: p.ticker.Elapsed(), FPS: p.ticker.FPS()}
	p.log.Info("heartbeat",
		logx.Uint64("beat", ev.Beat),
		logx.Duration("elapsed", ev.Elapsed),
		logx.Float64("fps", ev.FPS),
	)
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: EventBeat, Data: ev})
	}
}
