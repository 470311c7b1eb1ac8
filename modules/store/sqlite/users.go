package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/rollcall/internal/store"
)

// UserStore implements store.UserStore backed by SQLite.
type UserStore struct {
	db *sql.DB
}

// FindFirstByID implements store.UserFinder.
func (s *UserStore) FindFirstByID(ctx context.Context, id string) (store.User, error) {
	var (
		u         store.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at
		FROM users
		WHERE id = ?
		LIMIT 1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("sqlite: find user %q: %w", id, err)
	}

	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return store.User{}, fmt.Errorf("sqlite: parse created_at for %q: %w", id, err)
	}
	return u, nil
}

// Put inserts or replaces a user. A zero CreatedAt is set to the current time.
func (s *UserStore) Put(ctx context.Context, u store.User) error {
	if u.ID == "" {
		return fmt.Errorf("sqlite: put user: empty id")
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (id, name, email, created_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put user %q: %w", u.ID, err)
	}
	return nil
}

// Delete removes a user by id.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete user %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete user %q: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Len returns the number of stored users.
func (s *UserStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count users: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection is alive.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *UserStore) Close() error {
	return s.db.Close()
}
