// Package scoring turns a round's collected answers and verdicts into
// per-player points.
package scoring

import (
	"strings"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

const (
	UniquePoints   = 100
	RepeatedPoints = 50

	MsgEmpty        = "empty"
	MsgNotValidated = "not validated"
)

// Submission is one player's answers for a round.
type Submission struct {
	Player  string
	Answers stopgame.Answers
}

// Score computes the round result and the points each player earned.
// A valid word awards UniquePoints when no other valid answer in the same
// category normalizes to it, RepeatedPoints otherwise, scaled by the
// verdict score. Every submitting player appears in the returned deltas.
func Score(categories []string, subs []Submission, verdicts stopgame.Verdicts) (stopgame.RoundResult, map[string]float64) {
	result := make(stopgame.RoundResult, len(categories))
	deltas := make(map[string]float64, len(subs))
	for _, s := range subs {
		deltas[s.Player] = 0
	}

	for _, cat := range categories {
		type judged struct {
			answer stopgame.Answer
			norm   string
			score  float64
		}
		rows := make([]judged, 0, len(subs))
		counts := make(map[string]int)

		for _, s := range subs {
			raw := strings.TrimSpace(s.Answers[cat])
			j := judged{answer: stopgame.Answer{Player: s.Player, Word: raw}}

			switch {
			case raw == "":
				j.answer.Message = MsgEmpty
			default:
				j.norm = stopgame.Normalize(raw)
				v, ok := verdicts[stopgame.WordKey{Category: cat, Word: j.norm}]
				if !ok {
					j.answer.Message = MsgNotValidated
					break
				}
				j.answer.Valid = v.Valid
				j.answer.Message = v.Reason
				if v.Valid {
					j.score = v.Score
					counts[j.norm]++
				}
			}
			rows = append(rows, j)
		}

		answers := make([]stopgame.Answer, 0, len(rows))
		for _, j := range rows {
			if j.answer.Valid {
				base := float64(UniquePoints)
				if counts[j.norm] > 1 {
					base = RepeatedPoints
				}
				j.answer.Points = base * j.score
				deltas[j.answer.Player] += j.answer.Points
			}
			answers = append(answers, j.answer)
		}
		result[cat] = answers
	}

	return result, deltas
}
