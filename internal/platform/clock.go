package platform

import (
	"sync"
	"time"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
)

// SimulatedClock is a clock that only moves when told to, like a local node
// whose time is increased between transactions
type SimulatedClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewSimulatedClock creates a clock stopped at start
func NewSimulatedClock(start time.Time) *SimulatedClock {
	return &SimulatedClock{now: start}
}

// Advance moves the clock forward
func (c *SimulatedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *SimulatedClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep advances the clock instead of blocking
func (c *SimulatedClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Timestamp is the block timestamp a transaction mined now would carry
func (c *SimulatedClock) Timestamp() uint64 {
	return uint64(c.Now().Unix())
}

// After advances the clock and returns a channel that already fired
func (c *SimulatedClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

var _ adapter.Clock = (*SimulatedClock)(nil)
