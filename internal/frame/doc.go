// Package frame drives per-frame work on a single cooperative loop.
//
// Components (leaves first):
//   - Host: the environment's monotonic clock + "schedule next frame" primitive.
//     ManualHost steps time by hand (tests, headless runs); LoopHost fires frames
//     from a single goroutine at a fixed refresh rate.
//   - TimeSource: turns one-shot frame requests into a start/stop-able stream.
//   - Scheduler: computes deltas, optionally caps the callback rate and fans the
//     (timestamp, delta) pair out to registered callbacks in registration order.
//   - Task: a countdown with optional repeats, registered as an ordinary callback.
//
// Nothing in this package locks. Every Scheduler and Task method must be called
// from the goroutine that runs the host's frames; other goroutines hand work
// over through a Dispatcher (LoopHost.Do / LoopHost.Post).
package frame
