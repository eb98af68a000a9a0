package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level" json:"level"`
	// Format is json or text. Defaults to text.
	Format    string `yaml:"format" json:"format"`
	AddSource bool   `yaml:"add_source" json:"add_source"`
	// RedactPatterns extend DefaultRedactPatterns.
	RedactPatterns []string `yaml:"redact_patterns" json:"redact_patterns"`

	Output io.Writer `yaml:"-" json:"-"`
}

// ContextKey is the type of the context keys read by the log handler.
type ContextKey string

const (
	EventIDKey   ContextKey = "event_id"
	HandlerKey   ContextKey = "handler"
	ChannelIDKey ContextKey = "channel_id"
	UserIDKey    ContextKey = "user_id"
)

var contextKeys = []ContextKey{EventIDKey, HandlerKey, ChannelIDKey, UserIDKey}

// DefaultRedactPatterns match credentials that can leak into log lines
// through wrapped transport errors or dumped config.
var DefaultRedactPatterns = []string{
	// Discord bot tokens
	`[MNO][A-Za-z\d_-]{23,27}\.[A-Za-z\d_-]{6}\.[A-Za-z\d_-]{27,40}`,
	// Authorization headers
	`(?i)bearer\s+[A-Za-z0-9_\-\.=+/]{8,}`,
	`(?i)(token|secret|password|api[_-]?key)["']?\s*[:=]\s*["']?[^\s"',}]{6,}`,
	// JWT
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
}

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"token":         true,
	"bot_token":     true,
	"secret":        true,
	"password":      true,
	"api_key":       true,
	"authorization": true,
}

// NewLogger builds a slog logger whose handler redacts secrets from the
// message and string attributes and appends the ids stored on the context
// with the With* helpers.
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     LevelFromString(config.Level),
		AddSource: config.AddSource,
	}

	var inner slog.Handler
	if strings.EqualFold(config.Format, "json") {
		inner = slog.NewJSONHandler(config.Output, opts)
	} else {
		inner = slog.NewTextHandler(config.Output, opts)
	}

	patterns := append(append([]string(nil), DefaultRedactPatterns...), config.RedactPatterns...)
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			res = append(res, re)
		}
	}
	return slog.New(&redactHandler{inner: inner, patterns: res})
}

// LevelFromString parses a level name, falling back to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type redactHandler struct {
	inner    slog.Handler
	patterns []*regexp.Regexp
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactString(r.Message), r.PC)
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			out.AddAttrs(slog.String(string(key), v))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(clean), patterns: h.patterns}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), patterns: h.patterns}
}

func (h *redactHandler) redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(strings.ReplaceAll(a.Key, "-", "_"))] {
		return slog.String(a.Key, redacted)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, len(group))
		for i, g := range group {
			clean[i] = h.redactAttr(g)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.redactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func (h *redactHandler) redactString(s string) string {
	for _, re := range h.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// WithEventID stores the dispatch id on ctx for log correlation.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EventIDKey, id)
}

// WithHandler stores the handler name on ctx.
func WithHandler(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, HandlerKey, name)
}

// WithIdentity stores the channel and user ids of the triggering event.
func WithIdentity(ctx context.Context, channelID, userID string) context.Context {
	if channelID != "" {
		ctx = context.WithValue(ctx, ChannelIDKey, channelID)
	}
	if userID != "" {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}
	return ctx
}

// EventID returns the dispatch id stored on ctx, if any.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(EventIDKey).(string)
	return id
}
