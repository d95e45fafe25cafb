package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad log line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}

func TestBuild_ServiceAndComponentFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info", Service: "tmsserver", Component: "http"}, &buf)
	zl.Info().Msg("hello")
	zl.Debug().Msg("hidden")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1 (debug must be filtered)", len(lines))
	}
	l := lines[0]
	if l["service"] != "tmsserver" || l["component"] != "http" || l["msg"] != "hello" {
		t.Fatalf("unexpected line %v", l)
	}
	if _, ok := l["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", l)
	}
}

func TestFromContext_AddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)

	ctx := WithRequestID(context.Background(), "")
	ctx = WithLayerID(ctx, "sst-daily")
	FromContext(ctx, &zl).Info().Msg("rendered")

	l := decodeLines(t, &buf)[0]
	if l["layer_id"] != "sst-daily" {
		t.Fatalf("layer_id=%v", l["layer_id"])
	}
	if id, _ := l["request_id"].(string); len(id) != 16 || id != RequestID(ctx) {
		t.Fatalf("request_id=%v ctx=%q", l["request_id"], RequestID(ctx))
	}
}

func TestNewSlog_BridgesAttrsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl).With("logger", "store")

	log.Debug("dropped")
	log.WithGroup("cache").Warn("remote miss",
		slog.String("tier", "remote"),
		slog.Int("keys", 2),
		slog.Duration("took", 3*time.Millisecond),
		slog.Any("error", errors.New("timeout")),
	)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1", len(lines))
	}
	l := lines[0]
	if l["level"] != "warn" || l["logger"] != "store" {
		t.Fatalf("unexpected line %v", l)
	}
	if l["cache.tier"] != "remote" || l["cache.keys"] != float64(2) || l["cache.error"] != "timeout" {
		t.Fatalf("grouped attrs not flattened: %v", l)
	}
}
