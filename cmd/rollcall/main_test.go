package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/rollcall/internal/store"
	"github.com/flemzord/rollcall/internal/trigger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "rollcall dev") {
		t.Errorf("output = %q", out)
	}
	for _, id := range []string{"gateway.http", "scheduler.cron", "store.sqlite", "telemetry.otel"} {
		if !strings.Contains(out, id) {
			t.Errorf("compiled modules missing %s:\n%s", id, out)
		}
	}
}

func TestPrintUpcoming(t *testing.T) {
	t.Parallel()

	tr := trigger.MustParse("4 * * * * *")
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	if err := printUpcoming(&out, tr, from, 3); err != nil {
		t.Fatal(err)
	}
	want := "2024-01-01T10:00:04Z\n2024-01-01T10:01:04Z\n2024-01-01T10:02:04Z\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestCronNext(t *testing.T) {
	out, err := execute(t, "cron", "next", "0 30 9 * * MON-FRI", "-n", "4", "--tz", "Europe/Paris")
	if err != nil {
		t.Fatalf("cron next: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	for _, line := range lines {
		ts, err := time.Parse(time.RFC3339, line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if ts.Hour() != 9 || ts.Minute() != 30 {
			t.Errorf("%s is not 09:30 local", line)
		}
	}
}

func TestCronNext_Errors(t *testing.T) {
	if _, err := execute(t, "cron", "next", "* * * * *"); err == nil {
		t.Error("expected error for 5-field expression")
	}
	if _, err := execute(t, "cron", "next", "* * * * * *", "--tz", "Mars/Olympus"); err == nil {
		t.Error("expected error for unknown time zone")
	}
}

func TestUserPutGet(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")

	out, err := execute(t, "user", "put", "--db", db, "--id", "abc123", "--name", "Ada", "--email", "ada@example.com")
	if err != nil {
		t.Fatalf("user put: %v", err)
	}
	if !strings.Contains(out, "abc123") {
		t.Errorf("put output = %q", out)
	}

	out, err = execute(t, "user", "get", "--db", db, "abc123")
	if err != nil {
		t.Fatalf("user get: %v", err)
	}
	var u store.User
	if err := json.Unmarshal([]byte(out), &u); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if u.ID != "abc123" || u.Name != "Ada" || u.Email != "ada@example.com" {
		t.Errorf("user = %+v", u)
	}

	if _, err := execute(t, "user", "get", "--db", db, "doesnotexist"); err == nil {
		t.Error("expected error for unknown user")
	}
	if _, err := execute(t, "user", "put", "--db", db); err == nil {
		t.Error("expected error for missing --id")
	}
}

func TestConfigCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollcall.yaml")
	content := `version: "1"
data_dir: ` + dir + `
modules:
  store.sqlite: {}
  scheduler.cron:
    timezone: UTC
  gateway.http:
    bind: "127.0.0.1:0"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration OK (3 modules)") {
		t.Errorf("output = %q", out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: \"1\"\nmodules:\n  nope.module: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "config", "check", bad); err == nil {
		t.Error("expected error for unknown module")
	}
}
