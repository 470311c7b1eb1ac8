package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrate_RecordsVersionOnce(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	// A second run on a migrated database is a no-op.
	if err := migrate(ctx, s.db); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	var rows, latest int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(version) FROM schema_version").Scan(&rows, &latest); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if rows != len(migrations) || latest != schemaVersion {
		t.Errorf("schema_version rows=%d max=%d, want %d rows up to %d", rows, latest, len(migrations), schemaVersion)
	}
}

func TestMigrate_RejectsNewerDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "future.db")
	s, err := OpenPath(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := s.db.ExecContext(context.Background(), "INSERT INTO schema_version (version) VALUES (?)", schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	_, err = OpenPath(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("err = %v, want newer-schema error", err)
	}
}
