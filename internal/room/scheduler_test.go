package room

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestSchedulerCountdown(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	s := NewScheduler(clock, &mu)

	var ticks []int
	started := false
	mu.Lock()
	s.StartCountdown(3, func(n int) { ticks = append(ticks, n) }, func() { started = true })
	mu.Unlock()

	clock.Advance(2 * time.Second)
	if started {
		t.Fatal("round started early")
	}
	clock.Advance(time.Second)
	if !started {
		t.Fatal("round did not start")
	}
	if !slices.Equal(ticks, []int{2, 1}) {
		t.Errorf("ticks = %v, want [2 1]", ticks)
	}
}

func TestSchedulerZeroCountdownRunsNow(t *testing.T) {
	var mu sync.Mutex
	s := NewScheduler(newFakeClock(), &mu)

	started := false
	s.StartCountdown(0, func(int) { t.Error("unexpected tick") }, func() { started = true })
	if !started {
		t.Error("zero countdown did not run")
	}
}

func TestSchedulerRoundClock(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	s := NewScheduler(clock, &mu)

	expired := 0
	mu.Lock()
	s.StartRound(time.Minute, func() { expired++ })
	mu.Unlock()

	clock.Advance(20 * time.Second)
	mu.Lock()
	if got := s.Remaining(); got != 40*time.Second {
		t.Errorf("remaining = %v, want 40s", got)
	}
	mu.Unlock()

	clock.Advance(40 * time.Second)
	if expired != 1 || s.State() != SchedulerExpired {
		t.Errorf("expired = %d state = %v", expired, s.State())
	}
	if s.Remaining() != 0 {
		t.Errorf("remaining after expiry = %v", s.Remaining())
	}
}

func TestSchedulerStopPreventsExpiry(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	s := NewScheduler(clock, &mu)

	expired := false
	mu.Lock()
	s.StartRound(time.Minute, func() { expired = true })
	s.Stop()
	mu.Unlock()

	clock.Advance(2 * time.Minute)
	if expired {
		t.Error("stopped round expired")
	}
	if s.State() != SchedulerStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
}

// A timer that already fired but is waiting on the lock when the round is
// cancelled must not run.
func TestSchedulerStaleCallbackDropped(t *testing.T) {
	var mu sync.Mutex
	clock := &captureClock{}
	s := NewScheduler(clock, &mu)

	ran := false
	mu.Lock()
	s.StartRound(time.Minute, func() { ran = true })
	s.Cancel()
	mu.Unlock()

	clock.fire()
	if ran {
		t.Error("cancelled callback ran")
	}
}

// captureClock hands out timers whose Stop has no effect, as when the
// runtime timer has already fired.
type captureClock struct {
	fired []func()
}

func (c *captureClock) Now() time.Time { return time.Time{} }

func (c *captureClock) AfterFunc(d time.Duration, f func()) Timer {
	c.fired = append(c.fired, f)
	return noopTimer{}
}

func (c *captureClock) fire() {
	for _, f := range c.fired {
		f()
	}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }
