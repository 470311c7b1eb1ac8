package store

import (
	"context"
	"errors"
	"fmt"
)

// HandleService is the AppContext service name the shared *Handle is
// published under.
const HandleService = "store.handle"

// Opener establishes the connection behind a Handle.
type Opener func(ctx context.Context) (UserFinder, error)

// Handle is the process-wide gateway to the record store. It captures the
// outcome of a single connection attempt made at start-up; every later
// lookup observes that same outcome. A Handle is immutable and may be shared
// freely between goroutines.
type Handle struct {
	users UserFinder
	err   error
}

// Connect runs open exactly once and captures its outcome. It never fails:
// a connection error is stored and surfaces as ErrUnavailable on lookups.
func Connect(ctx context.Context, open Opener) *Handle {
	if open == nil {
		return Unavailable(errors.New("no opener configured"))
	}
	users, err := open(ctx)
	if err != nil {
		return Unavailable(err)
	}
	if users == nil {
		return Unavailable(errors.New("opener returned no store"))
	}
	return &Handle{users: users}
}

// Ready wraps an already-open finder.
func Ready(users UserFinder) *Handle {
	return &Handle{users: users}
}

// Unavailable returns a failed handle carrying cause.
func Unavailable(cause error) *Handle {
	return &Handle{err: cause}
}

// Err returns the captured connection error, or nil.
func (h *Handle) Err() error { return h.err }

// Available reports whether the connection attempt succeeded.
func (h *Handle) Available() bool { return h.err == nil }

// FindFirstByID returns the first user with the given id. It returns an error
// wrapping ErrUnavailable when the handle failed to connect, and ErrNotFound
// when no user matches.
func (h *Handle) FindFirstByID(ctx context.Context, id string) (User, error) {
	if h.err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrUnavailable, h.err)
	}
	return h.users.FindFirstByID(ctx, id)
}
