// Package validation decides whether submitted words are valid. Verdicts
// come from a durable cache when the same (letter, category, word) was judged
// before, and from an external judge otherwise.
package validation

import (
	"context"
	"sync"
	"time"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

// Cache stores verdicts keyed by (letter, category, normalized word).
//
// Store must treat an existing key as a benign race: the first written
// verdict wins and later writes for the same key are discarded without error.
type Cache interface {
	Lookup(ctx context.Context, letter string, keys []stopgame.WordKey) (stopgame.Verdicts, error)
	Store(ctx context.Context, letter string, verdicts stopgame.Verdicts) error
}

// Inspector is a Cache that can also be browsed and pruned by an operator.
type Inspector interface {
	Cache
	Get(ctx context.Context, letter, category, word string) (stopgame.CacheEntry, error)
	Stats(ctx context.Context) ([]LetterStats, error)
	Purge(ctx context.Context, letter, category string) (int64, error)
}

var (
	_ Inspector = (*SQLiteCache)(nil)
	_ Inspector = (*PostgresCache)(nil)
)

type memoryKey struct {
	letter string
	stopgame.WordKey
}

// MemoryCache is a process-local Cache. State is lost on restart.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[memoryKey]stopgame.CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[memoryKey]stopgame.CacheEntry)}
}

func (m *MemoryCache) Lookup(_ context.Context, letter string, keys []stopgame.WordKey) (stopgame.Verdicts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make(stopgame.Verdicts)
	for _, k := range keys {
		if e, ok := m.entries[memoryKey{letter, k}]; ok {
			hits[k] = e.Verdict
		}
	}
	return hits, nil
}

func (m *MemoryCache) Store(_ context.Context, letter string, verdicts stopgame.Verdicts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for k, v := range verdicts {
		mk := memoryKey{letter, k}
		if _, exists := m.entries[mk]; exists {
			continue
		}
		m.entries[mk] = stopgame.CacheEntry{
			Letter:    letter,
			Category:  k.Category,
			Word:      k.Word,
			Verdict:   v,
			CreatedAt: now,
		}
	}
	return nil
}

// Len reports the number of cached verdicts.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
