package frame

import "time"

func noopFrame(time.Duration) {}

// TimeSource turns the host's one-shot frame requests into a repeating stream.
type TimeSource struct {
	host    Host
	cb      FrameFunc
	running bool

	id    FrameID
	armed bool
}

func NewTimeSource(host Host, cb FrameFunc) *TimeSource {
	if cb == nil {
		cb = noopFrame
	}
	return &TimeSource{host: host, cb: cb}
}

func (t *TimeSource) Running() bool { return t.running }

// SetCallback replaces the callback; the next frame uses it.
func (t *TimeSource) SetCallback(cb FrameFunc) {
	if cb == nil {
		cb = noopFrame
	}
	t.cb = cb
}

func (t *TimeSource) Start() {
	if t.running {
		return
	}
	t.running = true
	t.arm()
}

func (t *TimeSource) Stop() {
	t.running = false
	if t.armed {
		t.host.CancelFrame(t.id)
		t.armed = false
	}
}

// Destroy stops the source and drops the callback. There is no way back.
func (t *TimeSource) Destroy() {
	t.Stop()
	t.cb = noopFrame
}

func (t *TimeSource) arm() {
	if t.armed {
		return
	}
	t.id = t.host.RequestFrame(t.step)
	t.armed = true
}

func (t *TimeSource) step(ts time.Duration) {
	t.armed = false
	t.cb(ts)
	// The callback may have stopped and restarted us; arm() ignores a second request.
	if t.running {
		t.arm()
	}
}
