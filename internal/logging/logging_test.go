package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Writer: &buf})

	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept", String("node_id", "sat-1"), Int("bundles", 3), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["msg"] != "kept" || rec["node_id"] != "sat-1" || rec["bundles"] != float64(3) || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestWithRunLoggerAnnotatesRunID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Writer: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatalf("expected a generated run_id")
	}
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("expected logger on context")
	}

	log.Info(ctx, "tick")
	if !strings.Contains(buf.String(), `"run_id":"`+id+`"`) {
		t.Fatalf("log line missing run_id %q: %s", id, buf.String())
	}

	// An existing run_id is kept.
	ctx2, _ := WithRunLogger(ContextWithRunID(context.Background(), "fixed"), base)
	if got := RunIDFromContext(ctx2); got != "fixed" {
		t.Fatalf("run_id = %q, want fixed", got)
	}
}

func TestNoopAndNilContext(t *testing.T) {
	log := Noop()
	log.With(String("k", "v")).Error(context.Background(), "ignored")

	if RunIDFromContext(nil) != "" || LoggerFromContext(nil) != nil {
		t.Fatalf("nil context should yield empty values")
	}
	if Err(nil).Value != nil {
		t.Fatalf("Err(nil) should carry a nil value")
	}
}
