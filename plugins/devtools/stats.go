package devtools

import "time"

// fpsProbe accumulates min/max/mean over frames with a known rate.
type fpsProbe struct {
	n        uint64
	min, max float64
	sum      float64
}

func (p *fpsProbe) add(fps float64) {
	if fps <= 0 {
		return
	}
	if p.n == 0 || fps < p.min {
		p.min = fps
	}
	if fps > p.max {
		p.max = fps
	}
	p.sum += fps
	p.n++
}

func (p *fpsProbe) avg() float64 {
	if p.n == 0 {
		return 0
	}
	return p.sum / float64(p.n)
}

// fpsWatch fires once the rate has stayed under threshold for window.
type fpsWatch struct {
	threshold float64
	window    time.Duration
	lowSince  time.Duration // -1 while the rate is healthy
	fired     bool
}

// observe reports true exactly once, on the frame that completes the window.
func (w *fpsWatch) observe(ts time.Duration, fps float64) bool {
	if w.fired || fps <= 0 {
		return false
	}
	if fps >= w.threshold {
		w.lowSince = -1
		return false
	}
	if w.lowSince < 0 {
		w.lowSince = ts
	}
	if ts-w.lowSince < w.window {
		return false
	}
	w.fired = true
	return true
}
