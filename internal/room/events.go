package room

import "github.com/playperu/tuttifrutti/internal/stopgame"

// Event types sent to clients.
const (
	EventRoomCreated    = "room_created"
	EventJoinedRoom     = "joined_room"
	EventPlayerList     = "update_player_list"
	EventStartCountdown = "start_countdown"
	EventCountdownTick  = "countdown_tick"
	EventGameStarted    = "game_started"
	EventForceSubmit    = "force_submit"
	EventCalculating    = "calculating_results"
	EventRoundResults   = "round_results"
	EventGameReset      = "game_reset"
	EventErrorJoining   = "error_joining"
	EventError          = "error"
)

// Event is a typed message for every client in a room.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Publisher delivers room-wide events. Publish is called with the room lock
// held and must not block or call back into the engine.
type Publisher interface {
	Publish(code string, ev Event)
}

type PlayerList struct {
	Players []stopgame.Player `json:"players"`
	Config  stopgame.Config   `json:"config"`
}

type Countdown struct {
	Seconds int `json:"seconds"`
}

type GameStarted struct {
	Letter               string   `json:"letter"`
	Categories           []string `json:"categories"`
	RoundDurationSeconds int      `json:"roundDurationSeconds"`
	Round                int      `json:"round"`
	TotalRounds          int      `json:"totalRounds"`
}

type ForceSubmit struct {
	StoppedBy string `json:"stoppedBy"`
}

type RoundResults struct {
	Letter      string               `json:"letter"`
	Results     stopgame.RoundResult `json:"results"`
	Scores      map[string]float64   `json:"scores"`
	IsGameOver  bool                 `json:"isGameOver"`
	Round       int                  `json:"round"`
	TotalRounds int                  `json:"totalRounds"`
	StoppedBy   string               `json:"stoppedBy"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Snapshot is the full state a client needs to render a room, sent on join
// and served over HTTP.
type Snapshot struct {
	Code             string             `json:"code"`
	Phase            stopgame.Phase     `json:"phase"`
	Players          []stopgame.Player  `json:"players"`
	Config           stopgame.Config    `json:"config"`
	Letter           string             `json:"letter,omitempty"`
	Categories       []string           `json:"categories,omitempty"`
	RemainingSeconds int                `json:"remainingSeconds"`
	StoppedBy        string             `json:"stoppedBy,omitempty"`
	Submitted        []string           `json:"submitted"`
	Scores           map[string]float64 `json:"scores"`
	LastResults      *RoundResults      `json:"lastResults,omitempty"`
	YouID            string             `json:"youId,omitempty"`
}
