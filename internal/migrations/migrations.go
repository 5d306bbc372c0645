// Package migrations holds the verdict cache schema for SQLite and Postgres.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

// Run applies all pending SQLite migrations against db and returns how many
// ran.
func Run(ctx context.Context, db *sql.DB) (int, error) {
	return up(ctx, goose.DialectSQLite3, db, "sqlite")
}

// RunPostgres applies all pending Postgres migrations on the server at dsn
// and returns how many ran.
func RunPostgres(ctx context.Context, dsn string) (int, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	return up(ctx, goose.DialectPostgres, db, "postgres")
}

func up(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) (int, error) {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		return 0, err
	}
	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return 0, fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	return len(results), nil
}
