package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/rollcall/internal/core"
	"github.com/flemzord/rollcall/internal/cron"
	"github.com/flemzord/rollcall/internal/store"
	"github.com/flemzord/rollcall/internal/telemetry"
	"gopkg.in/yaml.v3"
)

var testCreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() store.User {
	return store.User{ID: "abc123", Name: "Ada Lovelace", Email: "ada@example.com", CreatedAt: testCreatedAt}
}

// failingFinder returns err for every lookup.
type failingFinder struct{ err error }

func (f failingFinder) FindFirstByID(context.Context, string) (store.User, error) {
	return store.User{}, f.err
}

var errBoom = errors.New("boom")

// newTestGateway provisions a gateway with the given services published.
// A nil handle or scheduler leaves that service unregistered.
func newTestGateway(t *testing.T, h *store.Handle, s *cron.Scheduler) *Gateway {
	t.Helper()

	appCtx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir(), t.TempDir())
	appCtx.RegisterService(telemetry.RegistryService, telemetry.NewRegistry())
	if h != nil {
		appCtx.RegisterService(store.HandleService, h)
	}
	if s != nil {
		appCtx.RegisterService(cron.ServiceName, s)
	}

	g := &Gateway{}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	g.resolveServices()
	g.startedAt = time.Now()
	return g
}

func readyGateway(t *testing.T) *Gateway {
	t.Helper()
	return newTestGateway(t, store.Ready(store.NewMemoryStore(testUser())), nil)
}

// serve runs req through a freshly built router.
func serve(g *Gateway, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.buildRouter().ServeHTTP(rec, req)
	return rec
}

func body(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	b, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty yaml document")
	}
	return doc.Content[0]
}

func newScheduler(t *testing.T, exprs ...string) *cron.Scheduler {
	t.Helper()
	s := cron.NewScheduler(slog.New(slog.DiscardHandler))
	for _, expr := range exprs {
		if _, err := s.Add(expr, func(context.Context, cron.JobID, cron.Querier) error { return nil }); err != nil {
			t.Fatalf("Add(%q): %v", expr, err)
		}
	}
	return s
}
