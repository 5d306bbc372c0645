package validation

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

// MsgUnvalidated is the rationale for words the judge could not classify.
const MsgUnvalidated = "could not validate"

type Validator struct {
	cache    Cache
	judge    Judge
	flexible map[string]bool
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Validator)

func WithFlexible(categories map[string]bool) Option {
	return func(v *Validator) { v.flexible = categories }
}

func WithLanguage(lang string) Option {
	return func(v *Validator) { v.language = lang }
}

func WithTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

func NewValidator(cache Cache, judge Judge, logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{
		cache:    cache,
		judge:    judge,
		flexible: stopgame.Flexible,
		language: "es",
		timeout:  15 * time.Second,
		logger:   logger,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate returns a verdict for every non-empty word in words, keyed by
// category and normalized word. Cached verdicts are reused; the rest are sent
// to the judge in a single request and cached afterwards. When the judge
// fails, its words are marked invalid with MsgUnvalidated and not cached.
// Validate never fails: errors degrade the affected words only.
func (v *Validator) Validate(ctx context.Context, letter string, words map[string][]string) stopgame.Verdicts {
	letter = stopgame.NormalizeLetter(letter)

	raw := make(map[stopgame.WordKey]string)
	keys := make([]stopgame.WordKey, 0)
	for category, list := range words {
		for _, w := range list {
			k := stopgame.WordKey{Category: category, Word: stopgame.Normalize(w)}
			if k.Word == "" {
				continue
			}
			if _, seen := raw[k]; seen {
				continue
			}
			raw[k] = strings.TrimSpace(w)
			keys = append(keys, k)
		}
	}

	verdicts := make(stopgame.Verdicts, len(keys))
	if len(keys) == 0 {
		return verdicts
	}

	hits, err := v.cache.Lookup(ctx, letter, keys)
	if err != nil {
		v.logger.Warn("validation cache lookup failed", "letter", letter, "error", err)
		hits = nil
	}

	var misses []stopgame.WordKey
	for _, k := range keys {
		if h, ok := hits[k]; ok {
			verdicts[k] = h
			continue
		}
		misses = append(misses, k)
	}
	if len(misses) == 0 {
		return verdicts
	}

	judged := v.ask(ctx, letter, misses, raw)
	for _, k := range misses {
		if j, ok := judged[k]; ok {
			verdicts[k] = j
			continue
		}
		verdicts[k] = stopgame.Verdict{Reason: MsgUnvalidated}
	}

	if len(judged) > 0 {
		if err := v.cache.Store(ctx, letter, judged); err != nil {
			v.logger.Warn("validation cache write failed", "letter", letter, "error", err)
		}
	}

	v.logger.Debug("words validated",
		"letter", letter,
		"words", len(keys),
		"cached", len(keys)-len(misses),
		"judged", len(judged),
	)
	return verdicts
}

// ask sends all misses to the judge in one request and returns the verdicts
// it produced. Words the judge left out are absent from the result.
func (v *Validator) ask(ctx context.Context, letter string, misses []stopgame.WordKey, raw map[stopgame.WordKey]string) stopgame.Verdicts {
	req := JudgeRequest{
		Letter:          letter,
		Language:        v.language,
		WordsByCategory: make(map[string][]string),
		Rules:           Rules,
	}
	for _, k := range misses {
		req.WordsByCategory[k.Category] = append(req.WordsByCategory[k.Category], raw[k])
	}
	for category := range req.WordsByCategory {
		if v.flexible[category] {
			req.FlexibleCategories = append(req.FlexibleCategories, category)
		} else {
			req.StrictCategories = append(req.StrictCategories, category)
		}
	}
	sort.Strings(req.StrictCategories)
	sort.Strings(req.FlexibleCategories)

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.judge.Judge(ctx, req)
	if err != nil {
		v.logger.Warn("judge call failed", "letter", letter, "words", len(misses), "error", err)
		return nil
	}

	wanted := make(map[stopgame.WordKey]bool, len(misses))
	for _, k := range misses {
		wanted[k] = true
	}

	judged := make(stopgame.Verdicts, len(misses))
	for category, list := range resp {
		for _, jw := range list {
			k := stopgame.WordKey{Category: category, Word: stopgame.Normalize(jw.W)}
			if !wanted[k] {
				continue
			}
			score := snapScore(jw.V)
			judged[k] = stopgame.Verdict{
				Valid:  score > 0,
				Score:  score,
				Reason: jw.M,
			}
		}
	}
	return judged
}
