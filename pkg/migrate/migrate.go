package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where goose SQL migrations live relative to the repo root.
const DefaultDir = "migrations"

// Run executes a goose command ("up", "down", "status", ...) against db.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if dir == "" {
		dir = DefaultDir
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Version reports the current goose migration version.
func Version(db *sql.DB) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
