package timeutil

import "time"

// Sleeper abstracts time.Sleep so scheduling logic can be driven by a fake
// clock in tests instead of blocking real wall-clock time.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper delegates to time.Sleep.
type RealSleeper struct{}

// NewRealSleeper returns a Sleeper backed by the real wall clock.
func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
