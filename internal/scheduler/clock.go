package scheduler

import "time"

// Clock supplies time to the scheduler so tests can drive ticks by hand.
type Clock interface {
	Now() time.Time
	// NewTicker returns a tick channel and a function that stops it.
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
