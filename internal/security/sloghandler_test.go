package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(r *Redactor) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r)), &buf
}

func TestRedactingHandler_RedactsMessage(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(NewRedactor())
	logger.Info("header was Bearer abcdefghij")

	output := buf.String()
	if strings.Contains(output, "abcdefghij") {
		t.Errorf("secret found in log output: %s", output)
	}
	if !strings.Contains(output, RedactPlaceholder) {
		t.Errorf("expected placeholder in output: %s", output)
	}
}

func TestRedactingHandler_RedactsAttributes(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("super-secret-value")
	logger, buf := newRedactingLogger(r)

	logger.Info("test", "token", "super-secret-value", "safe", "visible")

	output := buf.String()
	if strings.Contains(output, "super-secret-value") {
		t.Errorf("secret found in attributes: %s", output)
	}
	if !strings.Contains(output, "visible") {
		t.Errorf("safe value missing from output: %s", output)
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("persistent-secret")
	logger, buf := newRedactingLogger(r)

	logger.With("bearer_token", "persistent-secret").Info("test message")

	if strings.Contains(buf.String(), "persistent-secret") {
		t.Errorf("secret found in WithAttrs output: %s", buf.String())
	}
}

func TestRedactingHandler_GroupsAndErrors(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("grouped-secret")
	logger, buf := newRedactingLogger(r)

	logger.WithGroup("auth").Info("login",
		slog.Group("basic", slog.String("pass", "grouped-secret")),
		"error", errors.New("dial postgres://admin:grouped-secret@db failed"),
	)

	output := buf.String()
	if strings.Contains(output, "grouped-secret") {
		t.Errorf("secret found in grouped output: %s", output)
	}
	if !strings.Contains(output, "auth.basic.pass") {
		t.Errorf("group structure lost: %s", output)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(NewRedactingHandler(inner, NewRedactor()))

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestRedactingHandler_SensitiveKeys(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(NewRedactor())
	logger.Info("login",
		"basic_pass", "pw", // not a sensitive key, not a known secret
		"DB_PASSWORD", "hunter2",
		"bearer_token", "opaque",
		slog.Group("auth", slog.String("client_secret", "xyz")),
	)

	output := buf.String()
	for _, leaked := range []string{"hunter2", "opaque", "xyz"} {
		if strings.Contains(output, leaked) {
			t.Errorf("%q leaked: %s", leaked, output)
		}
	}
	if !strings.Contains(output, "basic_pass=pw") {
		t.Errorf("non-sensitive key was redacted: %s", output)
	}
	if !strings.Contains(output, "auth.client_secret="+RedactPlaceholder) {
		t.Errorf("group member not redacted by key: %s", output)
	}
}
