package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LevelFromString(tt.in); got != tt.want {
				t.Fatalf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_JSONWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	ctx := WithEventID(context.Background(), "evt-1")
	ctx = WithHandler(ctx, "Greeter.ping")
	ctx = WithIdentity(ctx, "chan-1", "user-1")
	logger.DebugContext(ctx, "dispatched", "router", "command")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]string{
		"msg":        "dispatched",
		"event_id":   "evt-1",
		"handler":    "Greeter.ping",
		"channel_id": "chan-1",
		"user_id":    "user-1",
		"router":     "command",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestNewLogger_Redaction(t *testing.T) {
	botToken := "MTIzNDU2Nzg5MDEyMzQ1Njc4.GaBcDe.abcdefghijklmnopqrstuvwxyz0123"

	tests := []struct {
		name   string
		log    func(*slog.Logger)
		secret string
	}{
		{
			name:   "token in message",
			log:    func(l *slog.Logger) { l.Info("connecting with " + botToken) },
			secret: botToken,
		},
		{
			name:   "bearer header in error",
			log:    func(l *slog.Logger) { l.Error("dial failed", "error", errors.New("header Bearer abcdefghijkl rejected")) },
			secret: "abcdefghijkl",
		},
		{
			name:   "sensitive key",
			log:    func(l *slog.Logger) { l.Info("config", "token", "plain-value") },
			secret: "plain-value",
		},
		{
			name:   "inside group",
			log:    func(l *slog.Logger) { l.Info("config", slog.Group("bot", slog.String("password", "hunter2hunter2"))) },
			secret: "hunter2hunter2",
		},
		{
			name:   "logger attrs",
			log:    func(l *slog.Logger) { l.With("dsn", "password=supersecret").Info("ready") },
			secret: "supersecret",
		},
		{
			name:   "custom pattern",
			log:    func(l *slog.Logger) { l.Info("clan secret-clan-42 joined") },
			secret: "secret-clan-42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LogConfig{Output: &buf, RedactPatterns: []string{`secret-clan-\d+`}})
			tt.log(logger)
			out := buf.String()
			if strings.Contains(out, tt.secret) {
				t.Fatalf("secret leaked: %q", out)
			}
			if !strings.Contains(out, redacted) {
				t.Fatalf("missing redaction marker: %q", out)
			}
		})
	}
}

func TestNewLogger_InvalidPatternIgnored(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, RedactPatterns: []string{"("}})
	logger.Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestEventID(t *testing.T) {
	if got := EventID(context.Background()); got != "" {
		t.Fatalf("EventID(empty) = %q", got)
	}
	if got := EventID(WithEventID(context.Background(), "x")); got != "x" {
		t.Fatalf("EventID = %q, want x", got)
	}
}
