package frame

import (
	"context"
	"time"
)

// FrameID identifies a pending frame request.
type FrameID uint64

// FrameFunc receives the host timestamp of the frame it was requested for.
type FrameFunc func(ts time.Duration)

// Host is the environment dependency of the frame loop.
//
// Now and the timestamps passed to FrameFunc must come from the same
// monotonic clock. A request fires at most once; callers re-request to keep
// receiving frames.
type Host interface {
	Now() time.Duration
	RequestFrame(fn FrameFunc) FrameID
	CancelFrame(id FrameID)
}

// VisibilityNotifier is implemented by hosts that can report whether the
// output is currently hidden (minimized window, background tab, ...).
type VisibilityNotifier interface {
	OnVisibilityChange(fn func(hidden bool)) (cancel func())
}

// Dispatcher runs fn on the frame goroutine and waits for it to return.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

type pendingFrame struct {
	id       FrameID
	fn       FrameFunc
	canceled bool
}
