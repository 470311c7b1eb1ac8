// Package store defines the user record model and the shared data access
// handle used by request handlers.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for record lookups.
var (
	// ErrNotFound reports that no record matched. It is not a failure of the store.
	ErrNotFound = errors.New("store: record not found")

	// ErrUnavailable reports that the store could not be opened at start-up.
	ErrUnavailable = errors.New("store: unavailable")
)

// User is a persisted user record. It is passed through to callers as is.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFinder looks users up by id.
type UserFinder interface {
	// FindFirstByID returns the first user whose id equals id, or ErrNotFound.
	FindFirstByID(ctx context.Context, id string) (User, error)
}

// UserStore is a UserFinder that can also persist records.
type UserStore interface {
	UserFinder

	// Put inserts or replaces a user.
	Put(ctx context.Context, u User) error

	// Delete removes a user by id. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Len returns the number of stored users.
	Len(ctx context.Context) (int, error)
}
