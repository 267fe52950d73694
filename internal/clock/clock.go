// Package clock abstracts the wall clock so run timestamps and manual
// install notes can be tested deterministically.
package clock

import "time"

// Clock provides time operations.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed implements Clock with a frozen time for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the fixed time.
func (f Fixed) Now() time.Time {
	return f.Time
}

// OrReal returns c, or Real when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
