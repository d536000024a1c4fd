package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies every embedded *.up.sql file in lexical order. The statements are
// idempotent, so re-running is safe.
func MigrateUp(ctx context.Context, db *sql.DB) ([]string, error) {
	files, err := migrationFiles(".up.sql")
	if err != nil {
		return nil, err
	}
	return files, applyMigrations(ctx, db, files)
}

// MigrateDown applies every embedded *.down.sql file in reverse lexical order.
func MigrateDown(ctx context.Context, db *sql.DB) ([]string, error) {
	files, err := migrationFiles(".down.sql")
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, applyMigrations(ctx, db, files)
}

func migrationFiles(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, files []string) error {
	for _, name := range files {
		raw, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
