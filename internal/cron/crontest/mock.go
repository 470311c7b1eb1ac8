// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/rollcall/internal/cron"
)

// Firing is one recorded task invocation.
type Firing struct {
	ID   cron.JobID
	At   time.Time
	Next time.Time
}

// Recorder records every invocation of the task it hands out.
type Recorder struct {
	// Err, when set, is returned by every invocation.
	Err error

	mu      sync.Mutex
	firings []Firing
	notify  chan Firing
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan Firing, 64)}
}

// Task returns a cron.Task that records its invocations.
func (r *Recorder) Task() cron.Task {
	return func(_ context.Context, id cron.JobID, q cron.Querier) error {
		f := Firing{ID: id, At: time.Now()}
		f.Next, _ = q.NextTick(id)

		r.mu.Lock()
		r.firings = append(r.firings, f)
		r.mu.Unlock()

		select {
		case r.notify <- f:
		default:
		}
		return r.Err
	}
}

// Wait blocks until the next invocation or until ctx is done.
func (r *Recorder) Wait(ctx context.Context) (Firing, error) {
	select {
	case f := <-r.notify:
		return f, nil
	case <-ctx.Done():
		return Firing{}, ctx.Err()
	}
}

// Count returns the number of recorded invocations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.firings)
}

// Firings returns a copy of the recorded invocations.
func (r *Recorder) Firings() []Firing {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Firing, len(r.firings))
	copy(out, r.firings)
	return out
}
