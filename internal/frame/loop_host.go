package frame

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "framekit/pkg/logx"
)

// ErrLoopClosed is returned by Do once the loop has exited.
var ErrLoopClosed = errors.New("frame: loop closed")

const (
	defaultRefreshRate = 60
	postQueueSize      = 256
)

// LoopHost owns the frame goroutine.
//
// Frames fire from Run at the configured refresh rate. Work coming from other
// goroutines (config reloads, signal handlers, cron jobs) is marshalled onto
// the same goroutine via Post/Do, so frame code never needs locks.
type LoopHost struct {
	interval time.Duration
	epoch    time.Time
	log      logx.Logger

	mu      sync.Mutex
	nextID  FrameID
	pending []*pendingFrame
	visSeq  uint64
	vis     []visListener
	hidden  bool

	posted chan func()
	done   chan struct{}
	once   sync.Once
}

// NewLoopHost creates a host firing frames refreshRate times per second
// (<= 0 selects 60).
func NewLoopHost(refreshRate int, log logx.Logger) *LoopHost {
	if refreshRate <= 0 {
		refreshRate = defaultRefreshRate
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LoopHost{
		interval: time.Second / time.Duration(refreshRate),
		epoch:    time.Now(),
		log:      log,
		posted:   make(chan func(), postQueueSize),
		done:     make(chan struct{}),
	}
}

// Interval is the time between two frames.
func (h *LoopHost) Interval() time.Duration { return h.interval }

// Now is the monotonic time since the host was created.
func (h *LoopHost) Now() time.Duration { return time.Since(h.epoch) }

func (h *LoopHost) RequestFrame(fn FrameFunc) FrameID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.pending = append(h.pending, &pendingFrame{id: h.nextID, fn: fn})
	return h.nextID
}

func (h *LoopHost) CancelFrame(id FrameID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.pending {
		if p.id == id {
			p.canceled = true
			h.pending = append(h.pending[:i:i], h.pending[i+1:]...)
			return
		}
	}
}

// Post queues fn for the frame goroutine. It blocks while the queue is full
// and returns false once the loop has exited.
func (h *LoopHost) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.posted <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Do posts fn and waits until it has run on the frame goroutine.
func (h *LoopHost) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}
	select {
	case h.posted <- wrapped:
	case <-h.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-h.done:
		// The loop may have picked fn up right before exiting.
		select {
		case <-ran:
			return nil
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run fires frames until ctx is done. It must be called at most once.
func (h *LoopHost) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer h.once.Do(func() { close(h.done) })

	h.log.Debug("frame loop started", logx.Duration("interval", h.interval))
	defer h.log.Debug("frame loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-h.posted:
			h.safe("posted", fn)
		case <-ticker.C:
			h.frame()
		}
	}
}

// Done is closed when Run returns.
func (h *LoopHost) Done() <-chan struct{} { return h.done }

func (h *LoopHost) frame() {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	h.mu.Unlock()

	ts := h.Now()
	for _, p := range batch {
		h.mu.Lock()
		skip := p.canceled
		p.canceled = true
		h.mu.Unlock()
		if skip {
			continue
		}
		h.safe("frame", func() { p.fn(ts) })
	}
}

func (h *LoopHost) safe(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("frame loop recovered panic",
				logx.String("kind", kind),
				logx.String("panic", fmt.Sprint(r)),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	fn()
}

func (h *LoopHost) OnVisibilityChange(fn func(hidden bool)) func() {
	h.mu.Lock()
	h.visSeq++
	id := h.visSeq
	h.vis = append(h.vis, visListener{id: id, fn: fn})
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.vis {
			if l.id == id {
				h.vis = append(h.vis[:i:i], h.vis[i+1:]...)
				return
			}
		}
	}
}

// SetHidden reports a visibility change. Listeners run on the frame goroutine.
func (h *LoopHost) SetHidden(hidden bool) bool {
	return h.Post(func() {
		h.mu.Lock()
		if h.hidden == hidden {
			h.mu.Unlock()
			return
		}
		h.hidden = hidden
		ls := append([]visListener(nil), h.vis...)
		h.mu.Unlock()
		for _, l := range ls {
			l.fn(hidden)
		}
	})
}
