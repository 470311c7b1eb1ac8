package cron

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/rollcall/internal/trigger"
)

func noopTask(context.Context, JobID, Querier) error { return nil }

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestRegistry_RegisterInvalidExpression(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Register("every four seconds", noopTask)
	if !errors.Is(err, trigger.ErrInvalidExpression) {
		t.Fatalf("err = %v, want ErrInvalidExpression", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_RegisterNilTask(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry().Register("* * * * * *", nil); err == nil {
		t.Fatal("expected error for nil task")
	}
}

func TestRegistry_DueOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	id, err := r.Register("4 * * * * *", noopTask)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	info, _ := r.Job(id)
	if want := t0.Add(4 * time.Second); !info.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", info.NextRun, want)
	}

	if due := r.DueJobs(t0.Add(3 * time.Second)); len(due) != 0 {
		t.Fatalf("due before trigger: %v", due)
	}

	now := t0.Add(4 * time.Second)
	due := r.DueJobs(now)
	if len(due) != 1 || due[0] != id {
		t.Fatalf("due = %v, want [%v]", due, id)
	}
	if again := r.DueJobs(now); len(again) != 0 {
		t.Fatalf("job reported due twice for the same instant: %v", again)
	}

	info, _ = r.Job(id)
	if want := t0.Add(time.Minute + 4*time.Second); !info.NextRun.Equal(want) {
		t.Errorf("NextRun = %v, want %v", info.NextRun, want)
	}
	if !info.LastRun.Equal(now) {
		t.Errorf("LastRun = %v, want %v", info.LastRun, now)
	}
}

func TestRegistry_MissedFiringsCollapse(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	id, _ := r.Register("4 * * * * *", noopTask)

	late := t0.Add(5*time.Minute + 30*time.Second)
	if due := r.DueJobs(late); len(due) != 1 {
		t.Fatalf("due = %v, want one firing", due)
	}
	next, ok := r.NextTick(id)
	if want := t0.Add(6*time.Minute + 4*time.Second); !ok || !next.Equal(want) {
		t.Errorf("NextTick = %v, %v; want %v", next, ok, want)
	}
}

func TestRegistry_ConcurrentDueChecks(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	for range 10 {
		if _, err := r.Register("* * * * * *", noopTask); err != nil {
			t.Fatal(err)
		}
	}

	now := t0.Add(time.Second)
	var (
		mu    sync.Mutex
		seen  = make(map[JobID]int)
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for _, id := range r.DueJobs(now) {
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(seen) != 10 {
		t.Fatalf("reported %d distinct jobs, want 10", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %v reported %d times", id, n)
		}
	}
}

func TestRegistry_RemoveAndList(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	a, _ := r.Register("30 * * * * *", noopTask)
	b, _ := r.Register("10 * * * * *", noopTask)

	if got := r.List(); !slices.Equal(got, []JobID{b, a}) {
		t.Errorf("List = %v, want [%v %v]", got, b, a)
	}

	if !r.Remove(a) {
		t.Error("Remove existing job returned false")
	}
	if r.Remove(a) {
		t.Error("Remove missing job returned true")
	}
	if got := r.List(); !slices.Equal(got, []JobID{b}) {
		t.Errorf("List = %v, want [%v]", got, b)
	}
	if _, ok := r.Job(a); ok {
		t.Error("removed job still visible")
	}
	if _, ok := r.NextTick(a); ok {
		t.Error("NextTick reported a removed job")
	}
}

func TestRegistry_NextDue(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	if _, ok := r.NextDue(); ok {
		t.Fatal("empty registry reported a due instant")
	}

	_, _ = r.Register("0 5 * * * *", noopTask)
	_, _ = r.Register("20 * * * * *", noopTask)

	next, ok := r.NextDue()
	if want := t0.Add(20 * time.Second); !ok || !next.Equal(want) {
		t.Errorf("NextDue = %v, %v; want %v", next, ok, want)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.Register("* * * * * *", noopTask, WithName("cleanup")); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	_, err := r.Register("* * * * * *", noopTask, WithName("cleanup"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if _, err := r.Register("* * * * * *", noopTask); err != nil {
		t.Errorf("unnamed registration: %v", err)
	}
}

func TestRegistry_LastTick(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRegistryClock(fixedClock(t0)))
	id, _ := r.Register("* * * * * *", noopTask)

	if _, ok := r.LastTick(id); ok {
		t.Fatal("LastTick reported a job that never fired")
	}
	r.DueJobs(t0)
	last, ok := r.LastTick(id)
	if !ok || !last.Equal(t0) {
		t.Errorf("LastTick = %v, %v; want %v", last, ok, t0)
	}
}

func TestRegistry_Location(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC-5", -5*60*60)
	r := NewRegistry(WithRegistryClock(fixedClock(t0)), WithRegistryLocation(zone))
	id, _ := r.Register("0 0 6 * * *", noopTask)

	next, _ := r.NextTick(id)
	if want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("NextTick = %v, want %v", next, want)
	}
}

func TestJobID_RoundTrip(t *testing.T) {
	t.Parallel()

	id := NewJobID()
	parsed, err := ParseJobID(id.String())
	if err != nil {
		t.Fatalf("ParseJobID: %v", err)
	}
	if parsed != id {
		t.Errorf("parsed = %v, want %v", parsed, id)
	}
	if _, err := ParseJobID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestJobInfo_JSONUsesCanonicalID(t *testing.T) {
	t.Parallel()

	id := NewJobID()
	b, err := json.Marshal(JobInfo{ID: id, Expr: "4 * * * * *"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"id":"`+id.String()+`"`) {
		t.Errorf("json = %s, want canonical id", b)
	}
	if strings.Contains(string(b), "last_run") {
		t.Errorf("json = %s, zero last_run should be omitted", b)
	}

	var back JobInfo
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.ID != id {
		t.Errorf("ID = %v, want %v", back.ID, id)
	}
}
