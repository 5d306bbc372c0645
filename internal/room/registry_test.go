package room

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

func newTestRegistry(clock Clock) *Registry {
	return NewRegistry(clock, time.Hour, 5*time.Minute, slog.New(slog.DiscardHandler))
}

func TestRegistryCodes(t *testing.T) {
	reg := newTestRegistry(newFakeClock())
	digits := regexp.MustCompile(`^[0-9]{4}$`)

	seen := make(map[string]bool)
	for range 200 {
		r, err := reg.Create("owner")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if !digits.MatchString(r.Code) {
			t.Fatalf("code %q is not four digits", r.Code)
		}
		if seen[r.Code] {
			t.Fatalf("code %q issued twice", r.Code)
		}
		seen[r.Code] = true
	}
	if reg.Len() != 200 {
		t.Errorf("len = %d, want 200", reg.Len())
	}
}

func TestRegistrySweep(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(clock)

	abandoned, _ := reg.Create("a")

	busy, _ := reg.Create("b")
	busy.mu.Lock()
	busy.players = append(busy.players, &stopgame.Player{ID: "p", Connected: true})
	busy.markEmpty(clock.Now())
	busy.mu.Unlock()

	// Empty past the grace period.
	clock.Advance(6 * time.Minute)
	reg.Get(busy.Code)
	got := reg.Sweep(clock.Now())
	if !slices.Equal(got, []string{abandoned.Code}) {
		t.Fatalf("swept %v, want [%s]", got, abandoned.Code)
	}
	if _, ok := reg.Get(abandoned.Code); ok {
		t.Error("abandoned room still registered")
	}
}

func TestRegistrySweepIdleAndEmpty(t *testing.T) {
	h := newHarness(t)
	code := h.room(t)

	h.clock.Advance(30 * time.Minute)
	if got := h.registry.Sweep(h.clock.Now()); len(got) != 0 {
		t.Fatalf("swept active room: %v", got)
	}

	// Everyone gone: the room outlives the grace period only.
	h.engine.Disconnect(code, ana.SessionID)
	h.engine.Disconnect(code, beto.SessionID)
	h.clock.Advance(4 * time.Minute)
	if got := h.registry.Sweep(h.clock.Now()); len(got) != 0 {
		t.Fatalf("swept within grace: %v", got)
	}
	h.clock.Advance(2 * time.Minute)
	if got := h.registry.Sweep(h.clock.Now()); !slices.Equal(got, []string{code}) {
		t.Fatalf("swept %v, want [%s]", got, code)
	}

	// Idle: connected but untouched for longer than the TTL.
	code = h.room(t)
	h.clock.Advance(61 * time.Minute)
	if got := h.registry.Sweep(h.clock.Now()); !slices.Equal(got, []string{code}) {
		t.Fatalf("swept %v, want idle room %s", got, code)
	}
}

func TestRegistryDeleteDisarmsTimers(t *testing.T) {
	h := newHarness(t)
	code := h.room(t)
	h.play(t, code)

	h.registry.Delete(code)
	h.clock.Advance(h.opts.RoundDuration + h.opts.SettleBuffer)

	if n := h.events.count(EventForceSubmit); n != 0 {
		t.Errorf("deleted room fired force_submit %d times", n)
	}
	if _, err := h.engine.Snapshot(code); err == nil {
		t.Error("snapshot of deleted room succeeded")
	}
}

func TestRegistryRunStopsOnCancel(t *testing.T) {
	reg := newTestRegistry(SystemClock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
