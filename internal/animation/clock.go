package animation

import "time"

// Timer is a pending deferred call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

// Clock schedules deferred calls. Tests substitute a virtual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules on wall-clock time. Calls fire on their own goroutine.
type RealClock struct{}

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
