// Package room holds the live game rooms: their registry, the per-room round
// clock and the engine that drives every state transition.
package room

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playperu/tuttifrutti/internal/scoring"
	"github.com/playperu/tuttifrutti/internal/stopgame"
)

type submission struct {
	name    string
	answers stopgame.Answers
}

// Room is one game session. All fields below mu are guarded by it.
type Room struct {
	Code      string
	CreatedAt time.Time

	lastActivity atomic.Int64

	mu          sync.Mutex
	sched       *Scheduler
	ownerKey    string
	players     []*stopgame.Player
	phase       stopgame.Phase
	config      stopgame.Config
	usedLetters map[string]bool
	letter      string
	categories  []string
	submissions map[string]submission // by player key
	scores      map[string]float64    // by display name
	stoppedBy   string
	lastResults *RoundResults
	gameOver    bool
	settling    bool
	seq         uint64
	emptySince  time.Time
	closed      bool
}

func newRoom(code, ownerKey string, clock Clock) *Room {
	now := clock.Now()
	r := &Room{
		Code:        code,
		CreatedAt:   now,
		ownerKey:    ownerKey,
		phase:       stopgame.PhaseLobby,
		config:      stopgame.Config{TotalRounds: 1, CurrentRound: 1},
		usedLetters: make(map[string]bool),
		submissions: make(map[string]submission),
		scores:      make(map[string]float64),
		emptySince:  now,
	}
	r.sched = NewScheduler(clock, &r.mu)
	r.touch(now)
	return r
}

func (r *Room) touch(now time.Time) {
	r.lastActivity.Store(now.UnixNano())
}

// LastActivity reports when the room was last looked up or changed.
func (r *Room) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.sched.Cancel()
}

func (r *Room) playerByID(id string) *stopgame.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByKey(key string) *stopgame.Player {
	for _, p := range r.players {
		if p.Key == key {
			return p
		}
	}
	return nil
}

func (r *Room) nameTaken(name string) bool {
	for _, p := range r.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (r *Room) connected() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// waiting counts connected players who have not submitted this round.
// Submissions from players who have since left do not stand in for them.
func (r *Room) waiting() int {
	n := 0
	for _, p := range r.players {
		if !p.Connected {
			continue
		}
		if _, ok := r.submissions[p.Key]; !ok {
			n++
		}
	}
	return n
}

// allReady reports whether at least one player is connected and every
// connected player is ready.
func (r *Room) allReady() bool {
	n := 0
	for _, p := range r.players {
		if !p.Connected {
			continue
		}
		if !p.Ready {
			return false
		}
		n++
	}
	return n > 0
}

func (r *Room) markEmpty(now time.Time) {
	if r.connected() > 0 {
		r.emptySince = time.Time{}
		return
	}
	if r.emptySince.IsZero() {
		r.emptySince = now
	}
}

func (r *Room) removePlayer(id string) *stopgame.Player {
	i := slices.IndexFunc(r.players, func(p *stopgame.Player) bool { return p.ID == id })
	if i < 0 {
		return nil
	}
	p := r.players[i]
	r.players = slices.Delete(r.players, i, i+1)
	return p
}

func (r *Room) playerList() PlayerList {
	players := make([]stopgame.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
		players[i].IsOwner = p.Key == r.ownerKey
	}
	return PlayerList{Players: players, Config: r.config}
}

func (r *Room) copyScores() map[string]float64 {
	out := make(map[string]float64, len(r.scores))
	for k, v := range r.scores {
		out[k] = v
	}
	return out
}

// submissionList orders submissions by seat, with departed players last in
// name order, so scoring output is stable.
func (r *Room) submissionList() []scoring.Submission {
	out := make([]scoring.Submission, 0, len(r.submissions))
	seen := make(map[string]bool, len(r.submissions))
	for _, p := range r.players {
		if s, ok := r.submissions[p.Key]; ok {
			out = append(out, scoring.Submission{Player: s.name, Answers: s.answers})
			seen[p.Key] = true
		}
	}
	var gone []scoring.Submission
	for key, s := range r.submissions {
		if !seen[key] {
			gone = append(gone, scoring.Submission{Player: s.name, Answers: s.answers})
		}
	}
	slices.SortFunc(gone, func(a, b scoring.Submission) int {
		switch {
		case a.Player < b.Player:
			return -1
		case a.Player > b.Player:
			return 1
		}
		return 0
	})
	return append(out, gone...)
}

func (r *Room) snapshot() Snapshot {
	list := r.playerList()
	submitted := make([]string, 0, len(r.submissions))
	for _, p := range r.players {
		if _, ok := r.submissions[p.Key]; ok {
			submitted = append(submitted, p.Name)
		}
	}
	return Snapshot{
		Code:             r.Code,
		Phase:            r.phase,
		Players:          list.Players,
		Config:           r.config,
		Letter:           r.letter,
		Categories:       slices.Clone(r.categories),
		RemainingSeconds: int(math.Ceil(r.sched.Remaining().Seconds())),
		StoppedBy:        r.stoppedBy,
		Submitted:        submitted,
		Scores:           r.copyScores(),
		LastResults:      r.lastResults,
	}
}
