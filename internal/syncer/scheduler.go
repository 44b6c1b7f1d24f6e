package syncer

import "time"

// CancelFunc cancels a scheduled callback. Calling it after the callback
// has fired is a no-op.
type CancelFunc func()

// Scheduler schedules a callback after a delay. The production
// implementation uses time.AfterFunc; tests substitute a manual scheduler
// so dedup-window interleavings are deterministic.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler implements Scheduler on top of the runtime timer wheel
type TimerScheduler struct{}

// Schedule runs fn after d on a new goroutine
func (TimerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
