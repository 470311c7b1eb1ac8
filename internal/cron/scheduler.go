package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollInterval = time.Second
	// maxSleep bounds a single wait so wall clock adjustments are noticed.
	maxSleep = time.Minute
)

// Scheduler lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("cron: scheduler already started")
	ErrStopped        = errors.New("cron: scheduler stopped")
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPollInterval sets how long the loop sleeps when no job is registered.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLocation sets the time reference job triggers are evaluated in.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMetrics registers the scheduler's collectors with reg.
func WithMetrics(reg prometheus.Registerer) SchedulerOption {
	return func(s *Scheduler) { s.registerer = reg }
}

// Scheduler polls a Registry and launches due jobs.
//
// Task bodies run detached: shutdown neither cancels nor waits for them.
type Scheduler struct {
	registry     *Registry
	logger       *slog.Logger
	metrics      *Metrics
	registerer   prometheus.Registerer
	tracer       trace.Tracer
	pollInterval time.Duration
	loc          *time.Location

	state    atomic.Int32
	inFlight atomic.Int64
	baseCtx  context.Context

	hookMu sync.Mutex
	hook   func(ctx context.Context)

	wake         chan struct{}
	stop         chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewScheduler creates an idle scheduler with an empty registry.
func NewScheduler(logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:       logger,
		pollInterval: defaultPollInterval,
		loc:          time.UTC,
		tracer:       otel.Tracer("github.com/flemzord/rollcall/internal/cron"),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = NewRegistry(WithRegistryLocation(s.loc))
	s.metrics = NewMetrics(s.registerer)
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// InFlight returns the number of task bodies currently running.
func (s *Scheduler) InFlight() int64 { return s.inFlight.Load() }

// Add registers a task on a 6-field cron expression. Registration is allowed
// while idle or running and wakes a running loop.
func (s *Scheduler) Add(expr string, task Task, opts ...JobOption) (JobID, error) {
	if st := s.State(); st == StateShuttingDown || st == StateStopped {
		return JobID{}, ErrStopped
	}
	id, err := s.registry.Register(expr, task, opts...)
	if err != nil {
		return JobID{}, err
	}
	s.notify()
	return id, nil
}

// RegisterJob registers a named Job. Names must be unique and the job never
// overlaps with itself.
func (s *Scheduler) RegisterJob(j Job) (JobID, error) {
	return s.Add(j.Schedule(), func(ctx context.Context, _ JobID, _ Querier) error {
		return j.Run(ctx)
	}, WithName(j.Name()), Exclusive())
}

// Remove unregisters a job and reports whether it existed.
func (s *Scheduler) Remove(id JobID) bool {
	ok := s.registry.Remove(id)
	if ok {
		s.notify()
	}
	return ok
}

// Jobs returns a snapshot of registered jobs.
func (s *Scheduler) Jobs() []JobInfo { return s.registry.Jobs() }

// Job returns a snapshot of a single job.
func (s *Scheduler) Job(id JobID) (JobInfo, bool) { return s.registry.Job(id) }

// NextTick implements Querier.
func (s *Scheduler) NextTick(id JobID) (time.Time, bool) { return s.registry.NextTick(id) }

// LastTick implements Querier.
func (s *Scheduler) LastTick(id JobID) (time.Time, bool) { return s.registry.LastTick(id) }

// SetShutdownHook sets the action run once during Shutdown, after the loop
// has stopped launching jobs.
func (s *Scheduler) SetShutdownHook(hook func(ctx context.Context)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hook = hook
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start launches the polling loop. It may be called once, from the idle state.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if s.State() == StateRunning {
			return ErrAlreadyStarted
		}
		return ErrStopped
	}

	s.baseCtx = context.WithoutCancel(ctx)
	go s.loop()

	s.logger.Info("cron: scheduler started",
		"jobs", s.registry.Len(),
		"poll_interval", s.pollInterval,
		"location", s.loc.String(),
	)
	return nil
}

func (s *Scheduler) loop() {
	defer close(s.done)

	timer := time.NewTimer(s.sleepFor(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}

		// Shutdown wins over a simultaneous tick.
		select {
		case <-s.stop:
			return
		default:
		}

		now := time.Now()
		for _, e := range s.registry.due(now) {
			s.launch(e, now)
		}
		timer.Reset(s.sleepFor(time.Now()))
	}
}

func (s *Scheduler) sleepFor(now time.Time) time.Duration {
	next, ok := s.registry.NextDue()
	if !ok {
		return s.pollInterval
	}
	return min(max(next.Sub(now), 0), maxSleep)
}

func (s *Scheduler) launch(e *entry, at time.Time) {
	if e.exclusive && !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("cron: job still running, skipping tick", "job", e.label())
		s.metrics.observe(e.label(), resultSkipped, 0)
		return
	}
	go s.execute(e, at)
}

func (s *Scheduler) execute(e *entry, at time.Time) {
	if e.exclusive {
		defer e.running.Store(false)
	}
	s.inFlight.Add(1)
	s.metrics.inFlight.Inc()
	defer func() {
		s.inFlight.Add(-1)
		s.metrics.inFlight.Dec()
	}()

	ctx, span := s.tracer.Start(s.baseCtx, "cron.job",
		trace.WithAttributes(
			attribute.String("cron.job.id", e.id.String()),
			attribute.String("cron.job.name", e.name),
			attribute.String("cron.job.expr", e.trigger.String()),
		),
	)
	defer span.End()

	s.logger.Debug("cron: job started", "job", e.label(), "due", at)
	started := time.Now()
	result, err := s.invoke(ctx, e)
	elapsed := time.Since(started)
	s.metrics.observe(e.label(), result, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("cron: job failed", "job", e.label(), "error", err, "duration", elapsed)
		return
	}
	s.logger.Debug("cron: job completed", "job", e.label(), "duration", elapsed)
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = resultPanic
			err = fmt.Errorf("cron: job panicked: %v", r)
			s.logger.Debug("cron: job panic stack", "job", e.label(), "stack", string(debug.Stack()))
		}
	}()
	if err := e.task(ctx, e.id, s); err != nil {
		return resultError, err
	}
	return resultOK, nil
}

// Shutdown stops launching jobs, runs the shutdown hook exactly once and
// waits for it, bounded by ctx. The scheduler reaches StateStopped when the
// hook returns. Later calls return the first call's result.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { s.shutdownErr = s.shutdown(ctx) })
	return s.shutdownErr
}

func (s *Scheduler) shutdown(ctx context.Context) error {
	prev := State(s.state.Swap(int32(StateShuttingDown)))
	close(s.stop)
	if prev == StateRunning {
		<-s.done
	}
	s.logger.Info("cron: scheduler shutting down", "in_flight", s.InFlight())

	s.hookMu.Lock()
	hook := s.hook
	s.hookMu.Unlock()

	if hook == nil {
		s.state.Store(int32(StateStopped))
		s.logger.Info("cron: scheduler stopped")
		return nil
	}

	hookDone := make(chan struct{})
	go func() {
		defer close(hookDone)
		defer s.state.Store(int32(StateStopped))
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("cron: shutdown hook panicked", "panic", r)
			}
		}()
		hook(ctx)
	}()

	select {
	case <-hookDone:
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for shutdown hook: %w", ctx.Err())
	}
}
