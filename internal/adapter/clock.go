package adapter

import "time"

// Clock is the time source of the services. Contract state is timestamped in unix
// seconds, so Timestamp is what ends up on chain.
//
//go:generate mockgen -source=clock.go -destination=../mocks/clock.go -package=mocks -mock_names=Clock=MockClock
type Clock interface {
	Now() time.Time
	// Timestamp returns Now truncated to unix seconds
	Timestamp() uint64
	Since(t time.Time) time.Duration
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

// NewClock returns the system clock
func NewClock() Clock {
	return wallClock{}
}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) Timestamp() uint64                      { return uint64(time.Now().Unix()) }
func (wallClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
