package service

import "time"

// Clock is the time source for presence and history timestamps. Tests
// substitute a controllable implementation.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock reads the system clock.
var RealClock Clock = realClock{}
