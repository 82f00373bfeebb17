package spaceflake

import "time"

// Clock is the time source of a worker. Now may occasionally go backwards, workers
// tolerate small jumps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func unixMilli(c Clock) uint64 {
	return uint64(c.Now().UnixMilli())
}
