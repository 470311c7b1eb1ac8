package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_BIND", "0.0.0.0:8080")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "set variable", in: "bind: ${ROLLCALL_TEST_BIND}", want: "bind: 0.0.0.0:8080"},
		{name: "default unused", in: "bind: ${ROLLCALL_TEST_BIND:-127.0.0.1:3000}", want: "bind: 0.0.0.0:8080"},
		{name: "default used", in: "path: ${ROLLCALL_TEST_UNSET_PATH:-/tmp/rollcall.db}", want: "path: /tmp/rollcall.db"},
		{name: "empty default", in: "token: \"${ROLLCALL_TEST_UNSET_TOKEN:-}\"", want: "token: \"\""},
		{name: "no variables", in: "version: \"1\"", want: "version: \"1\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnv([]byte(tt.in))
			if err != nil {
				t.Fatalf("expandEnv: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_Unresolved(t *testing.T) {
	_, err := expandEnv([]byte("a: ${ROLLCALL_TEST_MISSING_A}\nb: ${ROLLCALL_TEST_MISSING_B}"))
	if err == nil {
		t.Fatal("expected error for unresolved variables")
	}
	for _, name := range []string{"ROLLCALL_TEST_MISSING_A", "ROLLCALL_TEST_MISSING_B"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestExpandEnv_EmptyValueTakesDefault(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_EMPTY", "")

	got, err := expandEnv([]byte("bind: ${ROLLCALL_TEST_EMPTY:-127.0.0.1:3000}\nraw: ${ROLLCALL_TEST_EMPTY}"))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if want := "bind: 127.0.0.1:3000\nraw: "; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_Escape(t *testing.T) {
	got, err := expandEnv([]byte(`note: "$${ROLLCALL_TEST_NEVER_SET} stays"`))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if want := `note: "${ROLLCALL_TEST_NEVER_SET} stays"`; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultWithBrace(t *testing.T) {
	got, err := expandEnv([]byte(`v: ${ROLLCALL_TEST_UNSET_BRACE:-a\}b}`))
	if err != nil {
		t.Fatalf("expandEnv: %v", err)
	}
	if string(got) != "v: a}b" {
		t.Errorf("got %q", got)
	}
}

func TestExpandEnv_Required(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_REQ_EMPTY", "")

	_, err := expandEnv([]byte("a: ${ROLLCALL_TEST_REQ_EMPTY:?bearer token for the admin API}\nb: ${ROLLCALL_TEST_REQ_UNSET:?}"))
	if err == nil {
		t.Fatal("expected error for required variables")
	}
	for _, want := range []string{
		"ROLLCALL_TEST_REQ_EMPTY: bearer token for the admin API",
		"ROLLCALL_TEST_REQ_UNSET: must be set",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}

	t.Setenv("ROLLCALL_TEST_REQ_EMPTY", "tok")
	got, err := expandEnv([]byte("a: ${ROLLCALL_TEST_REQ_EMPTY:?needed}"))
	if err != nil || string(got) != "a: tok" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestExpandEnv_ReportsEachNameOnce(t *testing.T) {
	_, err := expandEnv([]byte("a: ${ROLLCALL_TEST_DUP}\nb: ${ROLLCALL_TEST_DUP}"))
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "ROLLCALL_TEST_DUP"); n != 1 {
		t.Errorf("name reported %d times: %v", n, err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_DB", "/var/lib/rollcall/users.db")

	path := filepath.Join(t.TempDir(), "rollcall.yaml")
	content := `version: "1"
log:
  level: debug
modules:
  store.sqlite:
    path: ${ROLLCALL_TEST_DB}
  scheduler.cron:
    timezone: Europe/Paris
  gateway.http:
    bind: ${ROLLCALL_TEST_BIND:-127.0.0.1:3000}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != "1" || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := Resolve(cfg); strings.Join(got, ",") != "gateway.http,scheduler.cron,store.sqlite" {
		t.Errorf("Resolve = %v", got)
	}

	var store struct {
		Path string `yaml:"path"`
	}
	node := cfg.Modules["store.sqlite"]
	if err := node.Decode(&store); err != nil {
		t.Fatal(err)
	}
	if store.Path != "/var/lib/rollcall/users.db" {
		t.Errorf("store path = %q", store.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("modules: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
