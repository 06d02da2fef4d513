package engine

import "time"

// Clock supplies command, error and offset timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock time in UTC.
//
// Timestamps are for reporting only. Command order comes from the queue,
// never from comparing timestamps.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
