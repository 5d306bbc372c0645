package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playperu/tuttifrutti/internal/migrations"
	"github.com/playperu/tuttifrutti/internal/stopgame"
)

// PostgresCache implements Cache on a Postgres table.
type PostgresCache struct {
	pool *pgxpool.Pool
}

// NewPostgresCache applies the Postgres migrations at dsn and connects a
// pool to it.
func NewPostgresCache(ctx context.Context, dsn string) (*PostgresCache, error) {
	if _, err := migrations.RunPostgres(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresCache{pool: pool}, nil
}

func (c *PostgresCache) Lookup(ctx context.Context, letter string, keys []stopgame.WordKey) (stopgame.Verdicts, error) {
	byCategory := make(map[string][]string)
	for _, k := range keys {
		byCategory[k.Category] = append(byCategory[k.Category], k.Word)
	}

	hits := make(stopgame.Verdicts)
	for category, words := range byCategory {
		rows, err := c.pool.Query(ctx, `
			SELECT normalized_word, is_valid, score, reason
			FROM validation_cache
			WHERE letter = $1 AND category = $2 AND normalized_word = ANY($3)
		`, letter, category, words)
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
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("reading cache rows: %w", err)
		}
	}
	return hits, nil
}

// Store inserts each verdict on its own so that a unique violation on one
// key (another settlement got there first) does not discard the rest.
func (c *PostgresCache) Store(ctx context.Context, letter string, verdicts stopgame.Verdicts) error {
	for k, v := range verdicts {
		_, err := c.pool.Exec(ctx, `
			INSERT INTO validation_cache (category, letter, normalized_word, is_valid, score, reason)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, k.Category, letter, k.Word, v.Valid, v.Score, v.Reason)
		if err == nil {
			continue
		}

		var pgErr *pgconn.PgError
		// 23505 is unique_violation.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return fmt.Errorf("inserting verdict %s/%s: %w", k.Category, k.Word, err)
	}
	return nil
}

func (c *PostgresCache) Get(ctx context.Context, letter, category, word string) (stopgame.CacheEntry, error) {
	e := stopgame.CacheEntry{Letter: letter, Category: category, Word: word}
	err := c.pool.QueryRow(ctx, `
		SELECT is_valid, score, reason, created_at
		FROM validation_cache
		WHERE letter = $1 AND category = $2 AND normalized_word = $3
	`, letter, category, word).Scan(&e.Verdict.Valid, &e.Verdict.Score, &e.Verdict.Reason, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

func (c *PostgresCache) Stats(ctx context.Context) ([]LetterStats, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT letter,
			COUNT(*) FILTER (WHERE is_valid),
			COUNT(*) FILTER (WHERE NOT is_valid)
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

func (c *PostgresCache) Purge(ctx context.Context, letter, category string) (int64, error) {
	query := `DELETE FROM validation_cache WHERE letter = $1`
	args := []any{letter}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}

	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresCache) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *PostgresCache) Close() {
	c.pool.Close()
}
