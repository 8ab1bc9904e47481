package checkout

import "time"

// Task is a pending callback that can be cancelled.
type Task interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Task { return time.AfterFunc(d, f) }

// Clock schedules on real timers.
var Clock Scheduler = clock{}
