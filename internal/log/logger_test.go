package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(ComponentLedger)

	logger.Info("reset", FieldAccount, "guest")

	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("expected a single component attribute, got %q", out)
	}
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "account=guest") {
		t.Fatalf("missing attributes in %q", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("component without logger = %q", got)
	}
	logger := Discard().WithComponent(ComponentWorker)
	if got := FromContext(WithContext(context.Background(), logger)); got != logger {
		t.Fatal("logger not recovered from context")
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
		r := httptest.NewRequest("GET", "/summary?month=2024-03", nil)

		sl.LogHTTPEnd(context.Background(), r, tc.status, 3*time.Millisecond, "10.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tc.level) {
			t.Fatalf("status %d: want %s in %q", tc.status, tc.level, out)
		}
		if !strings.Contains(out, "component=http") || !strings.Contains(out, "client_ip=10.0.0.1") {
			t.Fatalf("missing attributes in %q", out)
		}
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))

	sl.LogError(context.Background(), "save failed", errors.New("disk full"), ComponentStorage, OpAppend, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "component=storage", `error="disk full"`, "operation=append"} {
		if !strings.Contains(out, want) {
			t.Fatalf("want %s in %q", want, out)
		}
	}
}
