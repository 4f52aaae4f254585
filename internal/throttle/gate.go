// Package throttle spaces handshake attempts out in time. Remote
// servers start blocking a source IP after a few dozen rapid checks,
// so a fixed inter-attempt delay is enforced globally, separate from
// and additive to the pipeline concurrency cap.
package throttle

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Gate hands out evenly spaced send slots. Concurrent callers are
// each assigned the next free slot, so attempts leave at most one per
// interval regardless of how many pipelines are in flight.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	clk      clock.Clock
	next     time.Time
}

// New creates a gate with the given minimum spacing. An interval of
// zero or less disables throttling. A nil clock defaults to the wall
// clock.
func New(interval time.Duration, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.New()
	}
	return &Gate{interval: interval, clk: clk}
}

// Wait blocks until this caller's slot arrives. The first caller
// passes immediately.
func (g *Gate) Wait() {
	if g.interval <= 0 {
		return
	}

	g.mu.Lock()
	now := g.clk.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		g.clk.Sleep(d)
	}
}
