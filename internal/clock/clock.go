// Package clock abstracts time so date-dependent logic (recheck windows,
// report windows, the prompt date stamp) can be tested with a fixed "today".
package clock

import "time"

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns time.Now.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// Today truncates the clock's current time to midnight in its location.
func Today(c Clock) time.Time {
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

var (
	_ Clock = RealClock{}
	_ Clock = Fixed{}
)
