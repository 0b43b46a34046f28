// Package system provides the wall clock used when no test clock is
// injected.
package system

import "time"

// Clock satisfies crawler.Clock with the real time. The governor and
// fetcher fall back to it when constructed with a nil clock.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, matching the timestamps the
// search API reports.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
