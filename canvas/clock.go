package canvas

import "time"

// A Clock provides the two scheduling primitives the compositor depends on:
// a repeating frame tick and a cancelable one-shot delayed callback.
type Clock interface {
	FrameTicker(interval time.Duration) (<-chan time.Time, func())
	After(delay time.Duration, fn func()) (cancel func())
}

// SystemClock implements Clock on the runtime timers.
type SystemClock struct{}

func (SystemClock) FrameTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

func (SystemClock) After(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
