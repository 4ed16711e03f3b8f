package util

import "time"

// Clock yields the current time; services hold one so tests can pin it.
type Clock func() time.Time

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// OrNow returns c, or NowUTC when c is nil.
func (c Clock) OrNow() Clock {
	if c == nil {
		return NowUTC
	}
	return c
}
