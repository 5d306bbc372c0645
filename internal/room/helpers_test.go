package room

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves time forward, firing due timers in order on the calling
// goroutine. Timers armed by callbacks fire too if they fall due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := -1
		for i, t := range c.timers {
			if t.stopped || t.at.After(target) {
				continue
			}
			if next < 0 || t.at.Before(c.timers[next].at) {
				next = i
			}
		}
		if next < 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		t := c.timers[next]
		c.timers = slices.Delete(c.timers, next, next+1)
		t.stopped = true
		c.now = t.at
		c.mu.Unlock()

		t.f()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(code string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// fakeValidator accepts every word not listed in invalid.
type fakeValidator struct {
	invalid map[string]bool
	block   chan struct{}
	panics  bool

	mu    sync.Mutex
	calls int
}

func (v *fakeValidator) Validate(ctx context.Context, letter string, words map[string][]string) stopgame.Verdicts {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()

	if v.block != nil {
		<-v.block
	}
	if v.panics {
		panic("judge exploded")
	}
	out := make(stopgame.Verdicts)
	for cat, ws := range words {
		for _, w := range ws {
			n := stopgame.Normalize(w)
			out[stopgame.WordKey{Category: cat, Word: n}] = stopgame.Verdict{Valid: !v.invalid[n], Score: 1}
		}
	}
	return out
}

type harness struct {
	engine    *Engine
	registry  *Registry
	clock     *fakeClock
	events    *recorder
	validator *fakeValidator
	opts      Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		events:    &recorder{},
		validator: &fakeValidator{},
		opts:      DefaultOptions(),
	}
	h.opts.Rand = rand.New(rand.NewPCG(1, 2))
	logger := slog.New(slog.DiscardHandler)
	h.registry = NewRegistry(h.clock, time.Hour, 5*time.Minute, logger)
	h.engine = NewEngine(h.registry, h.validator, h.events, h.opts, logger)
	return h
}

var (
	ana  = stopgame.Identity{SessionID: "s-ana", Key: "k-ana", Name: "Ana"}
	beto = stopgame.Identity{SessionID: "s-beto", Key: "k-beto", Name: "Beto"}
)

// room creates a room owned by ana with ana and beto seated.
func (h *harness) room(t *testing.T) string {
	t.Helper()
	code, err := h.engine.CreateRoom(ana)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, who := range []stopgame.Identity{ana, beto} {
		if _, err := h.engine.JoinRoom(code, who); err != nil {
			t.Fatalf("join %s: %v", who.Name, err)
		}
	}
	return code
}

// play readies everyone and runs the countdown, returning the live round.
func (h *harness) play(t *testing.T, code string) Snapshot {
	t.Helper()
	for _, who := range []stopgame.Identity{ana, beto} {
		if err := h.engine.ToggleReady(code, who.SessionID); err != nil {
			t.Fatalf("toggle ready %s: %v", who.Name, err)
		}
	}
	h.clock.Advance(time.Duration(h.opts.CountdownSeconds) * time.Second)

	snap := h.snapshot(t, code)
	if snap.Phase != stopgame.PhasePlaying {
		t.Fatalf("phase = %s after countdown, want playing", snap.Phase)
	}
	return snap
}

func (h *harness) snapshot(t *testing.T, code string) Snapshot {
	t.Helper()
	snap, err := h.engine.Snapshot(code)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func (h *harness) submit(t *testing.T, code string, who stopgame.Identity, answers stopgame.Answers, stop bool) {
	t.Helper()
	if err := h.engine.SubmitAnswers(code, who.SessionID, answers, stop); err != nil {
		t.Fatalf("submit %s: %v", who.Name, err)
	}
}

func (h *harness) results(t *testing.T) *RoundResults {
	t.Helper()
	h.engine.Wait()
	ev, ok := h.events.last(EventRoundResults)
	if !ok {
		t.Fatal("no round_results published")
	}
	return ev.Data.(*RoundResults)
}
