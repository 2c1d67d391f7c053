package clock

import "time"

// Clock provides the current time so that ledger timestamps can be controlled in tests
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time truncated to millisecond precision, which is
// the resolution carried in sync payloads
func (c *RealClock) Now() time.Time {
	return time.Now().Truncate(time.Millisecond)
}
