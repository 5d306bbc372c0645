package validation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/tuttifrutti/internal/stopgame"
)

var ErrNotFound = errors.New("not found")

// SQLiteCache implements Cache on the validation_cache table created by the
// migrations package.
type SQLiteCache struct {
	db *sql.DB
}

func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

func (c *SQLiteCache) Lookup(ctx context.Context, letter string, keys []stopgame.WordKey) (stopgame.Verdicts, error) {
	byCategory := make(map[string][]any)
	for _, k := range keys {
		byCategory[k.Category] = append(byCategory[k.Category], k.Word)
	}

	hits := make(stopgame.Verdicts)
	for category, words := range byCategory {
		args := append([]any{letter, category}, words...)
		rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT normalized_word, is_valid, score, reason
			FROM validation_cache
			WHERE letter = ? AND category = ? AND normalized_word IN (%s)
		`, placeholders(len(words))), args...)
		if err != nil {
			return nil, fmt.Errorf("querying cache: %w", err)
		}

		for rows.Next() {
			var word string
			var v stopgame.Verdict
			if err := rows.Scan(&word, &v.Valid, &v.Score, &v.Reason); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning cache row: %w", err)
			}
			hits[stopgame.WordKey{Category: category, Word: word}] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("reading cache rows: %w", err)
		}
	}
	return hits, nil
}

func (c *SQLiteCache) Store(ctx context.Context, letter string, verdicts stopgame.Verdicts) error {
	if len(verdicts) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range verdicts {
		isValid := 0
		if v.Valid {
			isValid = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO validation_cache (category, letter, normalized_word, is_valid, score, reason)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (category, letter, normalized_word) DO NOTHING
		`, k.Category, letter, k.Word, isValid, v.Score, v.Reason)
		if err != nil {
			return fmt.Errorf("inserting verdict %s/%s: %w", k.Category, k.Word, err)
		}
	}
	return tx.Commit()
}

// Get returns a single cached entry.
func (c *SQLiteCache) Get(ctx context.Context, letter, category, word string) (stopgame.CacheEntry, error) {
	e := stopgame.CacheEntry{Letter: letter, Category: category, Word: word}
	var createdAt string
	err := c.db.QueryRowContext(ctx, `
		SELECT is_valid, score, reason, created_at
		FROM validation_cache
		WHERE letter = ? AND category = ? AND normalized_word = ?
	`, letter, category, word).Scan(&e.Verdict.Valid, &e.Verdict.Score, &e.Verdict.Reason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

// LetterStats counts cached verdicts for one letter.
type LetterStats struct {
	Letter  string `json:"letter"`
	Valid   int    `json:"valid"`
	Invalid int    `json:"invalid"`
}

// Stats returns verdict counts grouped by letter.
func (c *SQLiteCache) Stats(ctx context.Context) ([]LetterStats, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT letter,
			SUM(CASE WHEN is_valid THEN 1 ELSE 0 END),
			SUM(CASE WHEN is_valid THEN 0 ELSE 1 END)
		FROM validation_cache
		GROUP BY letter
		ORDER BY letter
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []LetterStats
	for rows.Next() {
		var s LetterStats
		if err := rows.Scan(&s.Letter, &s.Valid, &s.Invalid); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Purge deletes cached verdicts for a letter, optionally limited to one
// category, and reports how many rows were removed.
func (c *SQLiteCache) Purge(ctx context.Context, letter, category string) (int64, error) {
	query := `DELETE FROM validation_cache WHERE letter = ?`
	args := []any{letter}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
