package utils

import "time"

// Clock abstracts time.Now so liveness math can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// NowMillis returns the current unix time in milliseconds.
func NowMillis() uint64 {
	return UnixMillis(time.Now())
}

// UnixMillis converts t to unix milliseconds, clamping pre-epoch times to zero.
func UnixMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// FromMillis converts unix milliseconds to a UTC time.
func FromMillis(ms uint64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}
