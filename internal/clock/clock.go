// Package clock provides the minimal budget-countdown clock the adapter
// needs to fill go wtime/btime commands. Increment handling, flag falls
// and presentation are out of scope here.
package clock

import (
	"sync"
	"time"
)

const noSide = -1

// Budget tracks two countdown budgets, at most one running at a time.
type Budget struct {
	mu        sync.Mutex
	remaining [2]time.Duration
	running   int
	startedAt time.Time
	now       func() time.Time
}

func New(budget time.Duration) *Budget {
	b := &Budget{running: noSide, now: time.Now}
	b.Reset(budget)
	return b
}

// Reset stops the clock and refills both sides.
func (b *Budget) Reset(budget time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining[0] = budget
	b.remaining[1] = budget
	b.running = noSide
}

// Remaining returns the budget left for a side, accounting for a running
// countdown. Never negative.
func (b *Budget) Remaining(side int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if side != 0 && side != 1 {
		return 0
	}
	rem := b.remaining[side]
	if b.running == side {
		rem -= b.now().Sub(b.startedAt)
	}
	if rem < 0 {
		rem = 0
	}
	return rem
}

// StartOne starts a side's countdown without touching the other side.
// Used for the very first move of a game.
func (b *Budget) StartOne(side int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startSideLocked(side)
}

// StartOneStopOther banks the running side's elapsed time and starts the
// given side.
func (b *Budget) StartOneStopOther(side int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.startSideLocked(side)
}

func (b *Budget) startSideLocked(side int) {
	if side != 0 && side != 1 {
		return
	}
	b.running = side
	b.startedAt = b.now()
}

func (b *Budget) stopLocked() {
	if b.running == noSide {
		return
	}
	b.remaining[b.running] -= b.now().Sub(b.startedAt)
	if b.remaining[b.running] < 0 {
		b.remaining[b.running] = 0
	}
	b.running = noSide
}
