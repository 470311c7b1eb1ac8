// Package trigger evaluates 6-field cron expressions
// (second minute hour day-of-month month day-of-week).
package trigger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is returned when a trigger expression cannot be parsed.
var ErrInvalidExpression = errors.New("trigger: invalid expression")

// parser accepts exactly six fields. Descriptors such as "@every" are rejected.
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Option configures a Trigger.
type Option func(*Trigger)

// WithLocation sets the time reference the expression is evaluated in.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(t *Trigger) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// Trigger is a parsed, immutable cron expression. It is safe for concurrent use.
type Trigger struct {
	expr  string
	loc   *time.Location
	sched *cron.SpecSchedule
}

// Parse parses a 6-field cron expression. Errors wrap ErrInvalidExpression.
func Parse(expr string, opts ...Option) (*Trigger, error) {
	t := &Trigger{expr: strings.TrimSpace(expr), loc: time.UTC}
	for _, opt := range opts {
		opt(t)
	}

	if strings.HasPrefix(t.expr, "TZ=") || strings.HasPrefix(t.expr, "CRON_TZ=") {
		return nil, fmt.Errorf("%w: %q: inline time zones are not supported", ErrInvalidExpression, expr)
	}

	s, err := parser.Parse(t.expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, expr, err)
	}
	spec, ok := s.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("%w: %q: unsupported schedule", ErrInvalidExpression, expr)
	}
	spec.Location = t.loc
	t.sched = spec
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(expr string, opts ...Option) *Trigger {
	t, err := Parse(expr, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the expression the trigger was parsed from.
func (t *Trigger) String() string { return t.expr }

// Location returns the evaluation time reference.
func (t *Trigger) Location() *time.Location { return t.loc }

// Next returns the soonest matching instant at or after ref. Sub-second
// precision rounds up to the next whole second. The zero time is returned
// when nothing matches within five years.
func (t *Trigger) Next(ref time.Time) time.Time {
	// SpecSchedule.Next is strictly-after with whole-second rounding, so
	// stepping back one nanosecond makes a matching whole second eligible.
	return t.sched.Next(ref.Add(-time.Nanosecond))
}

// After returns the soonest matching instant strictly after ref.
func (t *Trigger) After(ref time.Time) time.Time {
	return t.sched.Next(ref)
}

// Matches reports whether the whole second containing ref matches.
func (t *Trigger) Matches(ref time.Time) bool {
	sec := ref.Truncate(time.Second)
	return t.Next(sec).Equal(sec)
}

// Upcoming returns the next n matching instants at or after ref.
func (t *Trigger) Upcoming(ref time.Time, n int) []time.Time {
	out := make([]time.Time, 0, max(n, 0))
	next := t.Next(ref)
	for len(out) < n && !next.IsZero() {
		out = append(out, next)
		next = t.After(next)
	}
	return out
}
