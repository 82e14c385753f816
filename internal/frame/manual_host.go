package frame

import (
	"context"
	"time"
)

// ManualHost is a deterministic Host: time only moves when Step is called.
//
// It is not safe for concurrent use; tests and headless tools drive it from a
// single goroutine.
type ManualHost struct {
	now     time.Duration
	nextID  FrameID
	pending []*pendingFrame

	visSeq uint64
	vis    []visListener
	hidden bool
}

type visListener struct {
	id uint64
	fn func(hidden bool)
}

func NewManualHost() *ManualHost {
	return &ManualHost{}
}

func (h *ManualHost) Now() time.Duration { return h.now }

func (h *ManualHost) RequestFrame(fn FrameFunc) FrameID {
	h.nextID++
	h.pending = append(h.pending, &pendingFrame{id: h.nextID, fn: fn})
	return h.nextID
}

func (h *ManualHost) CancelFrame(id FrameID) {
	for i, p := range h.pending {
		if p.id == id {
			p.canceled = true
			h.pending = append(h.pending[:i:i], h.pending[i+1:]...)
			return
		}
	}
}

// Pending returns the number of frame requests waiting for the next Step.
func (h *ManualHost) Pending() int { return len(h.pending) }

// Advance moves the clock without firing frames (time spent "elsewhere").
func (h *ManualHost) Advance(dt time.Duration) { h.now += dt }

// Step advances the clock by dt and fires every request made before the call.
// Requests made while firing wait for the next Step. It returns the number of
// callbacks invoked.
func (h *ManualHost) Step(dt time.Duration) int {
	h.now += dt
	batch := h.pending
	h.pending = nil
	n := 0
	for _, p := range batch {
		if p.canceled {
			continue
		}
		p.canceled = true
		p.fn(h.now)
		n++
	}
	return n
}

// Run calls Step n times.
func (h *ManualHost) Run(n int, dt time.Duration) {
	for i := 0; i < n; i++ {
		h.Step(dt)
	}
}

func (h *ManualHost) OnVisibilityChange(fn func(hidden bool)) func() {
	h.visSeq++
	id := h.visSeq
	h.vis = append(h.vis, visListener{id: id, fn: fn})
	return func() {
		for i, l := range h.vis {
			if l.id == id {
				h.vis = append(h.vis[:i:i], h.vis[i+1:]...)
				return
			}
		}
	}
}

// SetHidden notifies visibility listeners when the state changes.
func (h *ManualHost) SetHidden(hidden bool) {
	if h.hidden == hidden {
		return
	}
	h.hidden = hidden
	for _, l := range append([]visListener(nil), h.vis...) {
		l.fn(hidden)
	}
}

// Do runs fn inline; ManualHost has no separate frame goroutine.
func (h *ManualHost) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}
