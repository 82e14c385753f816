package frame

import (
	"time"

	"github.com/rs/xid"
)

// TaskConfig describes a countdown.
//
// Repeat is the number of extra rounds after the first one (0 = fire once).
// Speed scales the deltas fed to the task; 0 means 1. Use SetSpeed(0) to
// freeze a task explicitly.
type TaskConfig struct {
	Delay  time.Duration
	Repeat int
	Speed  float64
}

// Task counts Delay down on every Update and notifies its owner through four
// signals, always in the order start, repeat*, complete, dispose. Dispose is
// terminal: counters are zeroed, subscribers are dropped and Update does
// nothing from then on.
type Task struct {
	OnStart    Signal[*Task]
	OnRepeat   Signal[*Task]
	OnComplete Signal[*Task]
	OnDispose  Signal[*Task]

	id        string
	delay     time.Duration
	remaining time.Duration
	repeat    int
	speed     float64
	paused    bool
	started   bool
	disposed  bool
}

func NewTask(cfg TaskConfig) *Task {
	speed := cfg.Speed
	if speed == 0 {
		speed = 1
	}
	repeat := cfg.Repeat
	if repeat < 0 {
		repeat = 0
	}
	return &Task{
		id:        xid.New().String(),
		delay:     cfg.Delay,
		remaining: cfg.Delay,
		repeat:    repeat,
		speed:     speed,
	}
}

func (t *Task) ID() string               { return t.id }
func (t *Task) Delay() time.Duration     { return t.delay }
func (t *Task) Remaining() time.Duration { return t.remaining }
func (t *Task) Repeat() int              { return t.repeat }
func (t *Task) Speed() float64           { return t.speed }
func (t *Task) Paused() bool             { return t.paused }
func (t *Task) Started() bool            { return t.started }
func (t *Task) Disposed() bool           { return t.disposed }
func (t *Task) Running() bool            { return t.remaining > 0 }
func (t *Task) SetSpeed(v float64)       { t.speed = v }
func (t *Task) Pause()                   { t.paused = true }
func (t *Task) Resume()                  { t.paused = false }

// Dispose fires OnDispose and ends the task. Calling it again is a no-op.
func (t *Task) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.remaining = 0
	t.repeat = 0
	t.OnDispose.Emit(t)
	t.release()
}

// Update is the task's per-frame callback.
func (t *Task) Update(_ time.Duration, dt time.Duration) {
	if t.disposed || t.paused || t.speed == 0 {
		return
	}
	if !t.started {
		t.started = true
		t.OnStart.Emit(t)
		if t.disposed {
			return
		}
	}

	t.remaining -= scale(dt, t.speed)
	if t.remaining > 0 {
		return
	}
	if t.repeat == 0 {
		t.complete()
		return
	}
	t.remaining = t.delay
	t.repeat--
	t.OnRepeat.Emit(t)
}

func (t *Task) complete() {
	t.remaining = 0
	t.OnComplete.Emit(t)
	// A complete subscriber may already have disposed the task.
	t.Dispose()
}

func (t *Task) release() {
	t.OnStart.DisconnectAll()
	t.OnRepeat.DisconnectAll()
	t.OnComplete.DisconnectAll()
	t.OnDispose.DisconnectAll()
}

func scale(d time.Duration, speed float64) time.Duration {
	if speed == 1 {
		return d
	}
	return time.Duration(float64(d) * speed)
}
