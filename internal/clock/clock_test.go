package clock

import (
	"testing"
	"time"
)

// fakeNow drives the clock deterministically.
type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time { return f.t }

func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestBudget(budget time.Duration) (*Budget, *fakeNow) {
	fn := &fakeNow{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := New(budget)
	b.now = fn.now
	return b, fn
}

func TestFreshBudget(t *testing.T) {
	b, _ := newTestBudget(5 * time.Minute)
	if got := b.Remaining(0); got != 5*time.Minute {
		t.Fatalf("white remaining = %v", got)
	}
	if got := b.Remaining(1); got != 5*time.Minute {
		t.Fatalf("black remaining = %v", got)
	}
}

func TestRunningSideCountsDown(t *testing.T) {
	b, fn := newTestBudget(time.Minute)
	b.StartOne(0)
	fn.advance(10 * time.Second)

	if got := b.Remaining(0); got != 50*time.Second {
		t.Fatalf("white remaining = %v, want 50s", got)
	}
	if got := b.Remaining(1); got != time.Minute {
		t.Fatalf("black remaining = %v, want untouched 1m", got)
	}
}

func TestStartOneStopOtherBanksElapsed(t *testing.T) {
	b, fn := newTestBudget(time.Minute)
	b.StartOne(0)
	fn.advance(10 * time.Second)
	b.StartOneStopOther(1)
	fn.advance(5 * time.Second)

	if got := b.Remaining(0); got != 50*time.Second {
		t.Fatalf("white remaining = %v, want banked 50s", got)
	}
	if got := b.Remaining(1); got != 55*time.Second {
		t.Fatalf("black remaining = %v, want 55s", got)
	}

	b.StartOneStopOther(0)
	fn.advance(20 * time.Second)
	if got := b.Remaining(0); got != 30*time.Second {
		t.Fatalf("white remaining = %v, want 30s", got)
	}
	if got := b.Remaining(1); got != 55*time.Second {
		t.Fatalf("black remaining = %v, want banked 55s", got)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	b, fn := newTestBudget(time.Second)
	b.StartOne(1)
	fn.advance(time.Minute)

	if got := b.Remaining(1); got != 0 {
		t.Fatalf("overdrawn remaining = %v, want 0", got)
	}
	b.StartOneStopOther(0)
	if got := b.Remaining(1); got != 0 {
		t.Fatalf("banked overdrawn remaining = %v, want 0", got)
	}
}

func TestResetRefillsAndStops(t *testing.T) {
	b, fn := newTestBudget(time.Minute)
	b.StartOne(0)
	fn.advance(30 * time.Second)

	b.Reset(2 * time.Minute)
	fn.advance(time.Hour)

	if got := b.Remaining(0); got != 2*time.Minute {
		t.Fatalf("white remaining after reset = %v", got)
	}
	if got := b.Remaining(1); got != 2*time.Minute {
		t.Fatalf("black remaining after reset = %v", got)
	}
}

func TestInvalidSide(t *testing.T) {
	b, _ := newTestBudget(time.Minute)
	if got := b.Remaining(2); got != 0 {
		t.Fatalf("invalid side remaining = %v, want 0", got)
	}
	b.StartOne(7)
	if got := b.Remaining(0); got != time.Minute {
		t.Fatalf("invalid StartOne changed state: %v", got)
	}
}
