package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/playperu/tuttifrutti/internal/scoring"
	"github.com/playperu/tuttifrutti/internal/stopgame"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not in room")
	ErrNotOwner       = errors.New("only the room owner can do that")
	ErrInvalidRounds  = errors.New("invalid number of rounds")
	ErrInvalidName    = errors.New("invalid player name")
)

const (
	maxNameLen   = 24
	maxAnswerLen = 64
)

// Validator judges a round's words. It always returns, marking words it
// could not resolve as not validated.
type Validator interface {
	Validate(ctx context.Context, letter string, words map[string][]string) stopgame.Verdicts
}

type Options struct {
	CountdownSeconds   int
	RoundDuration      time.Duration
	SettleBuffer       time.Duration
	SettleTimeout      time.Duration
	CategoriesPerRound int
	DefaultRounds      int
	MaxRounds          int
	Catalog            []string
	Rand               stopgame.Rand
}

func DefaultOptions() Options {
	return Options{
		CountdownSeconds:   3,
		RoundDuration:      60 * time.Second,
		SettleBuffer:       2 * time.Second,
		SettleTimeout:      30 * time.Second,
		CategoriesPerRound: 8,
		DefaultRounds:      5,
		MaxRounds:          20,
		Catalog:            stopgame.Catalog,
		Rand:               stopgame.DefaultRand,
	}
}

// Engine applies client commands and timer events to rooms. Every mutation
// of a room happens under that room's lock; settlement I/O runs outside it.
type Engine struct {
	rooms     *Registry
	validator Validator
	pub       Publisher
	clock     Clock
	opts      Options
	logger    *slog.Logger

	wg sync.WaitGroup
}

func NewEngine(rooms *Registry, validator Validator, pub Publisher, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		rooms:     rooms,
		validator: validator,
		pub:       pub,
		clock:     rooms.clock,
		opts:      opts,
		logger:    logger,
	}
}

// Wait blocks until in-flight settlements have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// lock returns the room with its lock held. The caller must unlock it.
func (e *Engine) lock(code string) (*Room, error) {
	r, ok := e.rooms.Get(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (e *Engine) publish(r *Room, typ string, data any) {
	e.pub.Publish(r.Code, Event{Type: typ, Data: data})
}

func (e *Engine) publishPlayers(r *Room) {
	e.publish(r, EventPlayerList, r.playerList())
}

// CreateRoom opens a room owned by who. The owner still has to join it.
func (e *Engine) CreateRoom(who stopgame.Identity) (string, error) {
	r, err := e.rooms.Create(who.Key)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.config.TotalRounds = e.opts.DefaultRounds
	r.mu.Unlock()

	e.logger.Info("room created", "room", r.Code, "owner", who.Name)
	return r.Code, nil
}

// JoinRoom seats who in the room, or rebinds their seat to the new session
// when their key is already there.
func (e *Engine) JoinRoom(code string, who stopgame.Identity) (Snapshot, error) {
	name := cleanName(who.Name)
	if name == "" {
		return Snapshot{}, ErrInvalidName
	}

	r, err := e.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	p := r.playerByKey(who.Key)
	if p != nil {
		p.ID = who.SessionID
		p.Connected = true
	} else {
		p = &stopgame.Player{
			ID:        who.SessionID,
			Key:       who.Key,
			Name:      r.uniqueName(name),
			Connected: true,
		}
		r.players = append(r.players, p)
	}
	if r.ownerKey == "" {
		r.ownerKey = who.Key
	}
	r.markEmpty(e.clock.Now())

	e.logger.Info("player joined", "room", code, "player", p.Name, "players", len(r.players))
	e.publishPlayers(r)

	snap := r.snapshot()
	snap.YouID = p.ID
	return snap, nil
}

func (r *Room) uniqueName(name string) string {
	if !r.nameTaken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !r.nameTaken(candidate) {
			return candidate
		}
	}
}

// ToggleReady flips the player's ready flag. When every connected player is
// ready the countdown starts.
func (e *Engine) ToggleReady(code, playerID string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.playerByID(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.phase != stopgame.PhaseLobby && r.phase != stopgame.PhaseResults {
		return nil
	}

	p.Ready = !p.Ready
	e.publishPlayers(r)
	e.checkReady(r)
	return nil
}

// ConfigureRound sets the number of rounds. Only the owner may do it, and
// only before a game starts.
func (e *Engine) ConfigureRound(code, playerID string, totalRounds int) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.playerByID(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if p.Key != r.ownerKey {
		return ErrNotOwner
	}
	if totalRounds < 1 || totalRounds > e.opts.MaxRounds {
		return fmt.Errorf("%w: %d, want 1 to %d", ErrInvalidRounds, totalRounds, e.opts.MaxRounds)
	}
	if r.phase != stopgame.PhaseLobby && !(r.phase == stopgame.PhaseResults && r.gameOver) {
		return nil
	}

	r.config.TotalRounds = totalRounds
	e.publishPlayers(r)
	return nil
}

// checkReady starts the countdown once every connected player is ready.
func (e *Engine) checkReady(r *Room) {
	if (r.phase == stopgame.PhaseLobby || r.phase == stopgame.PhaseResults) && r.allReady() {
		e.startGame(r)
	}
}

func (e *Engine) startGame(r *Room) {
	if r.phase == stopgame.PhaseLobby || r.gameOver {
		r.scores = make(map[string]float64)
		r.usedLetters = make(map[string]bool)
		r.config.CurrentRound = 1
		r.gameOver = false
		r.lastResults = nil
	}
	r.phase = stopgame.PhaseStarting

	e.logger.Info("countdown started", "room", r.Code, "round", r.config.CurrentRound)
	e.publish(r, EventStartCountdown, Countdown{Seconds: e.opts.CountdownSeconds})
	r.sched.StartCountdown(e.opts.CountdownSeconds,
		func(remaining int) {
			e.publish(r, EventCountdownTick, Countdown{Seconds: remaining})
		},
		func() { e.startRound(r) },
	)
}

func (e *Engine) startRound(r *Room) {
	r.seq++
	r.letter = stopgame.DrawLetter(e.opts.Rand, r.usedLetters)
	r.categories = stopgame.DrawCategories(e.opts.Rand, e.opts.Catalog, e.opts.CategoriesPerRound)
	r.submissions = make(map[string]submission)
	r.stoppedBy = ""
	r.phase = stopgame.PhasePlaying
	for _, p := range r.players {
		p.Ready = false
		p.DismissedResults = false
	}

	seq := r.seq
	r.sched.StartRound(e.opts.RoundDuration, func() { e.expire(r, seq) })

	e.logger.Info("round started", "room", r.Code, "round", r.config.CurrentRound, "letter", r.letter)
	e.publish(r, EventGameStarted, GameStarted{
		Letter:               r.letter,
		Categories:           slices.Clone(r.categories),
		RoundDurationSeconds: int(e.opts.RoundDuration / time.Second),
		Round:                r.config.CurrentRound,
		TotalRounds:          r.config.TotalRounds,
	})
	e.publishPlayers(r)
}

// expire runs when the round clock reaches zero.
func (e *Engine) expire(r *Room, seq uint64) {
	if r.seq != seq || r.phase != stopgame.PhasePlaying || r.stoppedBy != "" {
		return
	}
	e.stop(r, stopgame.SystemActor)
}

// stop records who ended the round, asks every client for its answers and
// gives them SettleBuffer to arrive before settling regardless.
func (e *Engine) stop(r *Room, by string) {
	r.stoppedBy = by
	e.logger.Info("round stopped", "room", r.Code, "by", by)
	e.publish(r, EventForceSubmit, ForceSubmit{StoppedBy: by})

	seq := r.seq
	r.sched.After(e.opts.SettleBuffer, func() { e.checkComplete(r, seq, true) })
}

// SubmitAnswers records a player's answers for the current round. A second
// submission from the same player is ignored. With forcedStop the player
// also stops the round for everyone.
func (e *Engine) SubmitAnswers(code, playerID string, answers stopgame.Answers, forcedStop bool) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.playerByID(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.phase != stopgame.PhasePlaying {
		return nil
	}
	if _, dup := r.submissions[p.Key]; dup {
		return nil
	}

	r.submissions[p.Key] = submission{name: p.Name, answers: r.cleanAnswers(answers)}

	if forcedStop && r.stoppedBy == "" {
		r.sched.Stop()
		e.stop(r, p.Name)
	}
	e.checkComplete(r, r.seq, false)
	return nil
}

// cleanAnswers keeps only the round's categories, trimmed and capped.
func (r *Room) cleanAnswers(in stopgame.Answers) stopgame.Answers {
	out := make(stopgame.Answers, len(r.categories))
	for _, cat := range r.categories {
		w := strings.TrimSpace(in[cat])
		if utf8.RuneCountInString(w) > maxAnswerLen {
			w = string([]rune(w)[:maxAnswerLen])
		}
		out[cat] = w
	}
	return out
}

// CheckRoundComplete settles the round if every connected player has
// submitted.
func (e *Engine) CheckRoundComplete(code string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	e.checkComplete(r, r.seq, false)
	return nil
}

func (e *Engine) checkComplete(r *Room, seq uint64, force bool) {
	if r.seq != seq || r.phase != stopgame.PhasePlaying || r.settling || len(r.categories) == 0 {
		return
	}
	if !force && r.waiting() > 0 {
		return
	}
	e.beginSettlement(r)
}

type settleJob struct {
	seq         uint64
	letter      string
	categories  []string
	submissions []scoring.Submission
	stoppedBy   string
}

func (e *Engine) beginSettlement(r *Room) {
	r.settling = true
	r.phase = stopgame.PhaseSettling
	r.sched.Cancel()

	job := settleJob{
		seq:         r.seq,
		letter:      r.letter,
		categories:  slices.Clone(r.categories),
		submissions: r.submissionList(),
		stoppedBy:   r.stoppedBy,
	}
	e.publish(r, EventCalculating, nil)

	e.wg.Add(1)
	go e.settle(r, job)
}

func (e *Engine) settle(r *Room, job settleJob) {
	defer e.wg.Done()
	done := false
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("settlement panicked", "room", r.Code, "panic", rec)
		}
		if !done {
			e.abortSettlement(r, job)
		}
	}()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.SettleTimeout)
	defer cancel()

	verdicts := e.validator.Validate(ctx, job.letter, collectWords(job.categories, job.submissions))
	result, deltas := scoring.Score(job.categories, job.submissions, verdicts)

	e.finishSettlement(r, job, result, deltas)
	done = true
	e.logger.Debug("round settled", "room", r.Code, "letter", job.letter, "duration", time.Since(start))
}

func collectWords(categories []string, subs []scoring.Submission) map[string][]string {
	words := make(map[string][]string, len(categories))
	for _, cat := range categories {
		for _, s := range subs {
			if w := strings.TrimSpace(s.Answers[cat]); w != "" {
				words[cat] = append(words[cat], w)
			}
		}
	}
	return words
}

func (e *Engine) finishSettlement(r *Room, job settleJob, result stopgame.RoundResult, deltas map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq != job.seq || !r.settling {
		return
	}
	for name, d := range deltas {
		r.scores[name] += d
	}
	e.publishResults(r, job, result)
}

// abortSettlement publishes an empty result so the room never sticks in
// the settling phase.
func (e *Engine) abortSettlement(r *Room, job settleJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq != job.seq || !r.settling {
		return
	}
	e.publishResults(r, job, make(stopgame.RoundResult))
}

func (e *Engine) publishResults(r *Room, job settleJob, result stopgame.RoundResult) {
	r.settling = false

	res := &RoundResults{
		Letter:      job.letter,
		Results:     result,
		Scores:      r.copyScores(),
		IsGameOver:  r.config.CurrentRound >= r.config.TotalRounds,
		Round:       r.config.CurrentRound,
		TotalRounds: r.config.TotalRounds,
		StoppedBy:   job.stoppedBy,
	}
	r.lastResults = res
	if res.IsGameOver {
		r.gameOver = true
	} else {
		r.config.CurrentRound++
	}
	r.submissions = make(map[string]submission)
	r.stoppedBy = ""
	r.phase = stopgame.PhaseResults
	for _, p := range r.players {
		p.Ready = false
		p.DismissedResults = false
	}

	e.logger.Info("round results", "room", r.Code, "round", res.Round, "game_over", res.IsGameOver)
	e.publish(r, EventRoundResults, res)
	e.publishPlayers(r)
}

// ResetGame returns the room to the lobby, discarding scores and any round
// in progress, including one being settled.
func (e *Engine) ResetGame(code, playerID string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.playerByID(playerID) == nil {
		return ErrPlayerNotFound
	}

	r.sched.Cancel()
	r.seq++
	r.settling = false
	r.phase = stopgame.PhaseLobby
	r.scores = make(map[string]float64)
	r.usedLetters = make(map[string]bool)
	r.config.CurrentRound = 1
	r.gameOver = false
	r.lastResults = nil
	r.submissions = make(map[string]submission)
	r.stoppedBy = ""
	r.letter = ""
	r.categories = nil
	for _, p := range r.players {
		p.Ready = false
		p.DismissedResults = false
	}

	e.logger.Info("game reset", "room", code)
	e.publish(r, EventGameReset, nil)
	e.publishPlayers(r)
	return nil
}

// DismissResults marks that the player has closed the results screen.
func (e *Engine) DismissResults(code, playerID string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.playerByID(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if r.phase != stopgame.PhaseResults || p.DismissedResults {
		return nil
	}
	p.DismissedResults = true
	e.publishPlayers(r)
	return nil
}

// LeaveRoom removes the player for good. Ownership passes to the first
// remaining player.
func (e *Engine) LeaveRoom(code, playerID string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.removePlayer(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if p.Key == r.ownerKey {
		r.ownerKey = ""
		if len(r.players) > 0 {
			r.ownerKey = r.players[0].Key
		}
	}
	r.markEmpty(e.clock.Now())

	e.logger.Info("player left", "room", code, "player", p.Name, "players", len(r.players))
	e.publishPlayers(r)
	e.checkComplete(r, r.seq, false)
	e.checkReady(r)
	return nil
}

// Disconnect marks the player's session as gone. The seat is kept so the
// player can rejoin with the same key.
func (e *Engine) Disconnect(code, playerID string) error {
	r, err := e.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p := r.playerByID(playerID)
	if p == nil {
		// The seat has already been rebound to a newer session.
		return ErrPlayerNotFound
	}
	p.Connected = false
	p.Ready = false
	r.markEmpty(e.clock.Now())

	e.logger.Info("player disconnected", "room", code, "player", p.Name)
	e.publishPlayers(r)
	e.checkComplete(r, r.seq, false)
	e.checkReady(r)
	return nil
}

// Snapshot returns the room's current state.
func (e *Engine) Snapshot(code string) (Snapshot, error) {
	r, err := e.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()
	return r.snapshot(), nil
}

func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}
