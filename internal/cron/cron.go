// Package cron runs recurring jobs on 6-field cron triggers alongside the
// rest of the process. Jobs live in a Registry; a Scheduler polls it and
// launches due task bodies as detached goroutines.
package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobID uniquely identifies a registered job for the lifetime of its registry.
type JobID uuid.UUID

// NewJobID returns a random job identifier.
func NewJobID() JobID { return JobID(uuid.New()) }

// ParseJobID parses the canonical textual form of a JobID.
func ParseJobID(s string) (JobID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, err
	}
	return JobID(id), nil
}

func (id JobID) String() string { return uuid.UUID(id).String() }

// MarshalText implements encoding.TextMarshaler.
func (id JobID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *JobID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// Querier gives task bodies read access to scheduling state.
type Querier interface {
	// NextTick returns the next due instant of a job.
	NextTick(id JobID) (time.Time, bool)

	// LastTick returns the instant a job was last reported due.
	LastTick(id JobID) (time.Time, bool)
}

// Task is the body of a job. It receives its own id and a Querier.
// A returned error (or a panic) is logged; it never stops the scheduler.
type Task func(ctx context.Context, id JobID, q Querier) error

// Job is a named periodic task, for callers that prefer a type over a closure.
// Jobs registered this way never overlap with themselves: a firing is
// skipped while the previous run is still in progress.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 6-field cron expression (e.g., "*/5 * * * * *").
	Schedule() string

	// Run executes the job.
	Run(ctx context.Context) error
}

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	ID        JobID     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Expr      string    `json:"expr"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitzero"`
	Exclusive bool      `json:"exclusive,omitempty"`
}

// JobOption configures a job at registration time.
type JobOption func(*entry)

// WithName attaches a human-readable name, used in logs and metrics.
// Names must be unique within a registry.
func WithName(name string) JobOption {
	return func(e *entry) { e.name = name }
}

// Exclusive skips a firing while the previous run of the same job is still
// in progress.
func Exclusive() JobOption {
	return func(e *entry) { e.exclusive = true }
}
