package room

import (
	"sync"
	"time"
)

// Clock abstracts wall time so timers can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}

type SchedulerState int

const (
	SchedulerIdle SchedulerState = iota
	SchedulerCounting
	SchedulerRunning
	SchedulerExpired
	SchedulerStopped
)

// Scheduler runs one room's countdown and round clock. At most one timer is
// armed at a time: arming a new one stops the previous.
//
// Every method must be called with lock held. Timer callbacks acquire lock
// themselves and are dropped if the timer was replaced or cancelled after it
// fired but before the callback got the lock.
type Scheduler struct {
	clock Clock
	lock  sync.Locker

	timer     Timer
	gen       uint64
	state     SchedulerState
	remaining int
	deadline  time.Time
}

func NewScheduler(clock Clock, lock sync.Locker) *Scheduler {
	return &Scheduler{clock: clock, lock: lock}
}

func (s *Scheduler) State() SchedulerState {
	return s.state
}

// Remaining reports the time left on the round clock, or zero when no round
// is running.
func (s *Scheduler) Remaining() time.Duration {
	if s.state != SchedulerRunning {
		return 0
	}
	d := s.deadline.Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

// StartCountdown calls tick once per second with the seconds left and then
// run. A countdown of zero seconds calls run immediately.
func (s *Scheduler) StartCountdown(seconds int, tick func(remaining int), run func()) {
	s.state = SchedulerCounting
	s.remaining = seconds
	if seconds <= 0 {
		s.stop()
		s.gen++
		run()
		return
	}

	var step func()
	step = func() {
		s.remaining--
		if s.remaining <= 0 {
			run()
			return
		}
		tick(s.remaining)
		s.arm(time.Second, step)
	}
	s.arm(time.Second, step)
}

// StartRound arms the round clock. expire runs when it reaches zero.
func (s *Scheduler) StartRound(d time.Duration, expire func()) {
	s.state = SchedulerRunning
	s.deadline = s.clock.Now().Add(d)
	s.arm(d, func() {
		s.state = SchedulerExpired
		expire()
	})
}

// Stop ends the round clock early, as when a player stops the round.
func (s *Scheduler) Stop() {
	s.cancel()
	s.state = SchedulerStopped
}

// After arms a one-shot timer without changing the scheduler state. It is
// used for the grace period between a stop and settlement.
func (s *Scheduler) After(d time.Duration, f func()) {
	s.arm(d, f)
}

// Cancel disarms any pending timer and returns to idle.
func (s *Scheduler) Cancel() {
	s.cancel()
	s.state = SchedulerIdle
}

func (s *Scheduler) cancel() {
	s.stop()
	s.gen++
}

func (s *Scheduler) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) arm(d time.Duration, f func()) {
	s.stop()
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		if s.gen != gen {
			return
		}
		s.timer = nil
		f()
	})
}
