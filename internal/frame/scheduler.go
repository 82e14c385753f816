package frame

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	logx "framekit/pkg/logx"
)

// Name is the registry name the scheduler registers under.
const Name = "Ticker"

// Callback is invoked once per qualifying frame with the frame timestamp and
// the speed-scaled delta.
type Callback func(ts, dt time.Duration)

// CallbackID is the handle returned by Add. Adding the same function twice
// yields two handles and two invocations per frame.
type CallbackID uint64

// Config configures a Scheduler.
type Config struct {
	// Limit caps callback invocations to this many per second (0 = uncapped).
	Limit int
	// Speed scales every delta handed to callbacks (0 = 1).
	Speed float64
	// Visibility pauses the scheduler while the host reports hidden output.
	Visibility bool
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithPanicLogLimit bounds how often recovered callback panics are logged.
func WithPanicLogLimit(every time.Duration, burst int) Option {
	return func(s *Scheduler) { s.panicLog = rate.NewLimiter(rate.Every(every), burst) }
}

type entry struct {
	id      CallbackID
	fn      Callback
	removed bool
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Started    bool          `json:"started"`
	Running    bool          `json:"running"`
	Callbacks  int           `json:"callbacks"`
	Frames     uint64        `json:"frames"`
	Dispatched uint64        `json:"dispatched"`
	Panics     uint64        `json:"panics"`
	FPS        float64       `json:"fps"`
	Elapsed    time.Duration `json:"elapsed"`
	Speed      float64       `json:"speed"`
	Limit      int           `json:"limit"`
}

// Scheduler drives registered callbacks from a TimeSource.
//
// Callbacks run synchronously, in registration order. A panicking callback is
// recovered and logged; the remaining callbacks of the frame still run.
// Callbacks added during a frame first run on the next frame; callbacks
// removed during a frame are skipped if they have not run yet.
type Scheduler struct {
	host     Host
	src      *TimeSource
	log      logx.Logger
	panicLog *rate.Limiter

	started   bool
	running   bool
	destroyed bool

	speed     float64
	limit     int
	limitRate time.Duration

	entries []*entry
	seq     CallbackID

	now      time.Duration // host clock at the last frame
	epoch    time.Duration
	pausedAt time.Duration
	last     time.Duration // timestamp of the last frame
	buffer   time.Duration // capped mode: time since the last dispatch
	delta    time.Duration // unscaled time between the last two dispatches

	frames     uint64
	dispatched uint64
	panics     uint64
	suppressed int

	visCancel func()
}

func NewScheduler(host Host, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:     host,
		panicLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.speed = cfg.Speed
	if s.speed == 0 {
		s.speed = 1
	}
	s.setLimit(cfg.Limit)
	s.src = NewTimeSource(host, s.step)

	if cfg.Visibility {
		if vn, ok := host.(VisibilityNotifier); ok {
			s.visCancel = vn.OnVisibilityChange(func(hidden bool) {
				if hidden {
					s.Pause()
				} else {
					s.Resume()
				}
			})
		} else {
			s.log.Warn("visibility handling requested but host cannot report visibility")
		}
	}
	return s
}

func (s *Scheduler) Name() string { return Name }

// OnRemove destroys the scheduler when it is removed from the registry.
func (s *Scheduler) OnRemove(context.Context) error {
	s.Destroy()
	return nil
}

func (s *Scheduler) IsStarted() bool        { return s.started }
func (s *Scheduler) IsRunning() bool        { return s.running }
func (s *Scheduler) IsDestroyed() bool      { return s.destroyed }
func (s *Scheduler) HasLimit() bool         { return s.limit > 0 }
func (s *Scheduler) Limit() int             { return s.limit }
func (s *Scheduler) Speed() float64         { return s.speed }
func (s *Scheduler) Now() time.Duration     { return s.now }
func (s *Scheduler) Last() time.Duration    { return s.last }
func (s *Scheduler) Delta() time.Duration   { return s.delta }
func (s *Scheduler) Elapsed() time.Duration { return s.last - s.epoch }
func (s *Scheduler) Len() int               { return len(s.entries) }
func (s *Scheduler) SetSpeed(v float64)     { s.speed = v }

// FPS derives the frame rate from the last delta; 0 before the first frame.
func (s *Scheduler) FPS() float64 {
	if s.delta <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.delta)
}

// SetLimit changes the callback rate cap (0 = uncapped).
func (s *Scheduler) SetLimit(fps int) {
	s.setLimit(fps)
	s.buffer = 0
}

func (s *Scheduler) setLimit(fps int) {
	if fps < 0 {
		fps = 0
	}
	s.limit = fps
	s.limitRate = 0
	if fps > 0 {
		s.limitRate = time.Duration(float64(time.Second) / float64(fps))
	}
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Started:    s.started,
		Running:    s.running,
		Callbacks:  len(s.entries),
		Frames:     s.frames,
		Dispatched: s.dispatched,
		Panics:     s.panics,
		FPS:        s.FPS(),
		Elapsed:    s.Elapsed(),
		Speed:      s.speed,
		Limit:      s.limit,
	}
}

// Start arms the time source. A second call is a no-op.
func (s *Scheduler) Start() {
	if s.started || s.destroyed {
		return
	}
	s.started = true
	s.running = true
	s.resetDelta()
	s.epoch = s.now
	s.src.Start()
	s.log.Debug("scheduler started", logx.Int("limit", s.limit), logx.Float64("speed", s.speed))
}

// Stop halts the scheduler until Start is called again. Callbacks are kept.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.started = false
	s.running = false
	s.src.Stop()
	s.log.Debug("scheduler stopped", logx.Duration("elapsed", s.Elapsed()))
}

// Pause stops frames without losing elapsed time.
func (s *Scheduler) Pause() {
	if !s.running {
		return
	}
	s.src.Stop()
	s.running = false
	s.pausedAt = s.host.Now()
}

// Resume restarts frames after Pause; the paused gap is excluded from Elapsed.
func (s *Scheduler) Resume() {
	if s.running || !s.started || s.destroyed {
		return
	}
	s.running = true
	s.resetDelta()
	s.epoch += s.now - s.pausedAt
	s.src.Start()
}

// Destroy stops the scheduler and drops every callback. It cannot be undone.
func (s *Scheduler) Destroy() {
	if s.destroyed {
		return
	}
	s.Stop()
	s.destroyed = true
	s.src.Destroy()
	for _, e := range s.entries {
		e.removed = true
	}
	s.entries = nil
	if s.visCancel != nil {
		s.visCancel()
		s.visCancel = nil
	}
}

// Add registers cb. It returns 0 and registers nothing once destroyed.
func (s *Scheduler) Add(cb Callback) CallbackID {
	if cb == nil || s.destroyed {
		return 0
	}
	s.seq++
	s.entries = append(s.entries, &entry{id: s.seq, fn: cb})
	return s.seq
}

// Remove unregisters the callback behind id; unknown ids are ignored.
func (s *Scheduler) Remove(id CallbackID) {
	for i, e := range s.entries {
		if e.id == id {
			e.removed = true
			// Copy so a frame iterating the old slice is not disturbed.
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

// AddTask creates a task, registers its Update and removes it again once the
// task completes or is disposed.
func (s *Scheduler) AddTask(cfg TaskConfig) *Task {
	t := NewTask(cfg)
	id := s.Add(t.Update)
	remove := func(*Task) { s.Remove(id) }
	t.OnComplete.Connect(remove)
	t.OnDispose.Connect(remove)
	return t
}

func (s *Scheduler) resetDelta() {
	s.now = s.host.Now()
	s.last = s.now
	s.buffer = 0
	s.delta = 0
}

func (s *Scheduler) step(ts time.Duration) {
	s.now = s.host.Now()
	s.frames++

	raw := ts - s.last
	s.last = ts

	if s.limitRate > 0 {
		s.buffer += raw
		if s.buffer < s.limitRate {
			return
		}
		// The remainder is dropped, not carried over.
		s.delta = s.buffer
		s.buffer = 0
	} else {
		s.delta = raw
	}
	s.dispatch(ts, scale(raw, s.speed))
}

func (s *Scheduler) dispatch(ts, dt time.Duration) {
	s.dispatched++
	for _, e := range s.entries {
		if e.removed {
			continue
		}
		s.invoke(e, ts, dt)
	}
}

func (s *Scheduler) invoke(e *entry, ts, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.callbackPanicked(e.id, r)
		}
	}()
	e.fn(ts, dt)
}

func (s *Scheduler) callbackPanicked(id CallbackID, r any) {
	s.panics++
	if !s.panicLog.Allow() {
		s.suppressed++
		return
	}
	s.log.Error("frame callback panicked",
		logx.Uint64("callback", uint64(id)),
		logx.String("panic", fmt.Sprint(r)),
		logx.Int("suppressed", s.suppressed),
		logx.Stack(string(debug.Stack())),
	)
	s.suppressed = 0
}
