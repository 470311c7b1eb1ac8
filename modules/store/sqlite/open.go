package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens (creating if needed) the SQLite database described by cfg and
// returns a UserStore backed by it. The caller must Close the store.
//
// The database uses a single connection (SQLite serialises writes), the
// configured busy timeout and, unless disabled, WAL mode. The schema is
// migrated automatically.
func Open(ctx context.Context, cfg Config) (*UserStore, error) {
	cfg.defaults()
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &UserStore{db: db}, nil
}

// OpenPath is shorthand for Open with default settings.
func OpenPath(ctx context.Context, path string) (*UserStore, error) {
	return Open(ctx, Config{Path: path})
}
