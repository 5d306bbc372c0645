// Package stopgame defines the core domain types shared by the room engine,
// the validation pipeline and the scoring rules.
package stopgame

import "time"

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseStarting Phase = "starting"
	PhasePlaying  Phase = "playing"
	PhaseSettling Phase = "settling"
	PhaseResults  Phase = "results"
)

func (p Phase) String() string {
	return string(p)
}

// SystemActor is recorded as stoppedBy when the round clock runs out.
const SystemActor = "TIME"

// Identity is what the transport layer knows about the sender of an event.
// SessionID changes on every reconnect; Key does not.
type Identity struct {
	SessionID string
	Key       string
	Name      string
}

type Player struct {
	ID               string `json:"id"`
	Key              string `json:"-"`
	Name             string `json:"name"`
	Ready            bool   `json:"ready"`
	Connected        bool   `json:"connected"`
	DismissedResults bool   `json:"dismissedResults"`
	IsOwner          bool   `json:"isOwner"`
}

// Answers maps a category name to the raw word a player typed for it.
type Answers map[string]string

type Config struct {
	TotalRounds  int `json:"totalRounds"`
	CurrentRound int `json:"currentRound"`
}

// Verdict is the validity judgment for one (letter, category, word).
// Score is one of 0, 0.5 or 1.
type Verdict struct {
	Valid  bool    `json:"isValid"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// WordKey identifies a normalized word within a category.
type WordKey struct {
	Category string
	Word     string
}

// Verdicts holds the judgments for one round, all under the same letter.
type Verdicts map[WordKey]Verdict

// CacheEntry is a persisted verdict.
type CacheEntry struct {
	Letter    string
	Category  string
	Word      string
	Verdict   Verdict
	CreatedAt time.Time
}

// Answer is one player's word in one category after settlement.
type Answer struct {
	Player  string  `json:"player"`
	Word    string  `json:"word"`
	Valid   bool    `json:"isValid"`
	Points  float64 `json:"points"`
	Message string  `json:"message"`
}

// RoundResult lists the scored answers per category.
type RoundResult map[string][]Answer
