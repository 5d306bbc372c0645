package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	codeDigits  = 4
	codeRetries = 64
)

var ErrNoFreeCode = errors.New("no free room code")

// Registry owns every live room, keyed by its join code.
type Registry struct {
	clock      Clock
	logger     *slog.Logger
	idleTTL    time.Duration
	emptyGrace time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry. Rooms untouched for idleTTL, or
// without a connected player for emptyGrace, are removed by Sweep.
func NewRegistry(clock Clock, idleTTL, emptyGrace time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		clock:      clock,
		logger:     logger,
		idleTTL:    idleTTL,
		emptyGrace: emptyGrace,
		rooms:      make(map[string]*Room),
	}
}

// Create registers a new room with a fresh four-digit code.
func (r *Registry) Create(ownerKey string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for range codeRetries {
		code, err := newCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := newRoom(code, ownerKey, r.clock)
		r.rooms[code] = room
		return room, nil
	}
	return nil, ErrNoFreeCode
}

// Get looks up a room and marks it active.
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	room, ok := r.rooms[code]
	r.mu.RUnlock()
	if ok {
		room.touch(r.clock.Now())
	}
	return room, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Delete removes a room and disarms its timers.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	room, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()

	if ok {
		room.close()
	}
}

// Sweep deletes rooms that are idle or have been empty past the grace
// period, returning their codes.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	var removed []string
	for _, room := range rooms {
		if !r.expired(room, now) {
			continue
		}
		r.Delete(room.Code)
		removed = append(removed, room.Code)
	}
	return removed
}

func (r *Registry) expired(room *Room, now time.Time) bool {
	if now.Sub(room.LastActivity()) > r.idleTTL {
		return true
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return !room.emptySince.IsZero() && now.Sub(room.emptySince) > r.emptyGrace
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := r.Sweep(r.clock.Now()); len(removed) > 0 {
				r.logger.Info("swept rooms", "codes", removed, "remaining", r.Len())
			}
		}
	}
}

func newCode() (string, error) {
	b := make([]byte, codeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating room code: %w", err)
	}
	for i := range b {
		b[i] = '0' + b[i]%10
	}
	return string(b), nil
}
