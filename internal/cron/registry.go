package cron

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/rollcall/internal/trigger"
)

// ErrDuplicateName is returned when a job name is already registered.
var ErrDuplicateName = errors.New("cron: duplicate job name")

// entry is a registered job. id, name, trigger, task and exclusive are
// immutable; next and last are guarded by Registry.mu.
type entry struct {
	id        JobID
	name      string
	trigger   *trigger.Trigger
	task      Task
	exclusive bool
	running   atomic.Bool

	next time.Time
	last time.Time
}

func (e *entry) label() string {
	if e.name != "" {
		return e.name
	}
	return e.id.String()
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryClock overrides the clock used to compute the first due instant.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithRegistryLocation sets the time reference triggers are evaluated in.
func WithRegistryLocation(loc *time.Location) RegistryOption {
	return func(r *Registry) { r.loc = loc }
}

// Registry holds the set of scheduled jobs. It is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	jobs map[JobID]*entry
	now  func() time.Time
	loc  *time.Location
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		jobs: make(map[JobID]*entry),
		now:  time.Now,
		loc:  time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register parses expr and adds a job. The error wraps
// trigger.ErrInvalidExpression when the expression is malformed.
func (r *Registry) Register(expr string, task Task, opts ...JobOption) (JobID, error) {
	if task == nil {
		return JobID{}, errors.New("cron: nil task")
	}
	tr, err := trigger.Parse(expr, trigger.WithLocation(r.loc))
	if err != nil {
		return JobID{}, err
	}

	e := &entry{id: NewJobID(), trigger: tr, task: task}
	for _, opt := range opts {
		opt(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.name != "" {
		for _, other := range r.jobs {
			if other.name == e.name {
				return JobID{}, fmt.Errorf("%w %q", ErrDuplicateName, e.name)
			}
		}
	}
	for r.jobs[e.id] != nil {
		e.id = NewJobID()
	}
	e.next = tr.Next(r.now())
	r.jobs[e.id] = e
	return e.id, nil
}

// Remove deletes a job and reports whether it existed.
func (r *Registry) Remove(id JobID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// List returns a snapshot of job ids ordered by next due instant.
func (r *Registry) List() []JobID {
	infos := r.Jobs()
	ids := make([]JobID, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

// Jobs returns a snapshot of every job ordered by next due instant, then id.
func (r *Registry) Jobs() []JobInfo {
	r.mu.Lock()
	infos := make([]JobInfo, 0, len(r.jobs))
	for _, e := range r.jobs {
		infos = append(infos, e.info())
	}
	r.mu.Unlock()

	slices.SortFunc(infos, func(a, b JobInfo) int {
		if c := a.NextRun.Compare(b.NextRun); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return infos
}

// Job returns a snapshot of a single job.
func (r *Registry) Job(id JobID) (JobInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return e.info(), true
}

// info must be called with the registry lock held.
func (e *entry) info() JobInfo {
	return JobInfo{
		ID:        e.id,
		Name:      e.name,
		Expr:      e.trigger.String(),
		NextRun:   e.next,
		LastRun:   e.last,
		Exclusive: e.exclusive,
	}
}

// DueJobs reports every job whose next due instant is at or before now and
// advances each of them past now in the same critical section, so a firing
// is reported exactly once.
func (r *Registry) DueJobs(now time.Time) []JobID {
	due := r.due(now)
	ids := make([]JobID, len(due))
	for i, e := range due {
		ids[i] = e.id
	}
	return ids
}

func (r *Registry) due(now time.Time) []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*entry
	for _, e := range r.jobs {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		e.last = now
		e.next = e.trigger.After(now)
		due = append(due, e)
	}
	return due
}

// NextDue returns the earliest due instant across all jobs.
func (r *Registry) NextDue() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var earliest time.Time
	for _, e := range r.jobs {
		if e.next.IsZero() {
			continue
		}
		if earliest.IsZero() || e.next.Before(earliest) {
			earliest = e.next
		}
	}
	return earliest, !earliest.IsZero()
}

// NextTick implements Querier.
func (r *Registry) NextTick(id JobID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok || e.next.IsZero() {
		return time.Time{}, false
	}
	return e.next, true
}

// LastTick implements Querier.
func (r *Registry) LastTick(id JobID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok || e.last.IsZero() {
		return time.Time{}, false
	}
	return e.last, true
}
