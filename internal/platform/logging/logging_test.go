package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", name, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "operation", "buy_kitty")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["msg"] != "kept" || rec["operation"] != "buy_kitty" {
		t.Fatalf("unexpected record %v", rec)
	}
	ts, _ := rec["time"].(string)
	if !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC timestamp, got %q", ts)
	}
}

func TestNewTextAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hello", "kitty_id", 3)
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "kitty_id=3") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
	if _, err := New(&buf, Config{Format: "xml"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := New(&buf, Config{Level: "loud"}); err == nil {
		t.Fatalf("expected unknown level error")
	}
	Discard().Error("nothing")
}
