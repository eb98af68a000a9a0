// Package config loads the bot runtime configuration from YAML or JSON5
// files, resolving $include directives and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/observability"
	"github.com/haasonsaas/botkit/internal/ratelimit"
)

// Supported platforms.
const (
	PlatformDiscord = "discord"
	PlatformGateway = "gateway"
	PlatformMemory  = "memory"
)

// Config is the root of botkit.yaml.
type Config struct {
	Version   int                       `yaml:"version"`
	Bot       BotConfig                 `yaml:"bot"`
	Session   SessionConfig             `yaml:"session"`
	Restricts access.Scope              `yaml:"restricts"`
	RateLimit ratelimit.Config          `yaml:"rate_limit"`
	Logging   observability.LogConfig   `yaml:"logging"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	Tracing   observability.TraceConfig `yaml:"tracing"`
}

// BotConfig selects the platform and its credentials.
type BotConfig struct {
	Platform   string `yaml:"platform"`
	Token      string `yaml:"token"`
	BotID      string `yaml:"bot_id"`
	GatewayURL string `yaml:"gateway_url"`
	ClientID   string `yaml:"client_id"`

	// Prefix is the default command prefix.
	Prefix string `yaml:"prefix"`

	// DedupeTTL suppresses redelivered events seen within the window.
	DedupeTTL time.Duration `yaml:"dedupe_ttl"`
}

// SessionConfig controls login retries.
type SessionConfig struct {
	AutoRetry bool `yaml:"auto_retry"`
	// MaxRetry bounds retries after the first attempt. Zero is unbounded.
	MaxRetry int `yaml:"max_retry"`
	// RetryDuration bounds the time spent retrying. Zero is unbounded.
	RetryDuration time.Duration `yaml:"retry_duration"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config for the in-memory platform.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Bot.Platform == "" {
		cfg.Bot.Platform = PlatformMemory
	}
	cfg.Bot.Platform = strings.ToLower(strings.TrimSpace(cfg.Bot.Platform))
	if cfg.Bot.Prefix == "" {
		cfg.Bot.Prefix = "*"
	}
	if cfg.Bot.DedupeTTL == 0 {
		cfg.Bot.DedupeTTL = 5 * time.Minute
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = ratelimit.DefaultConfig().RequestsPerSecond
	}
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = ratelimit.DefaultConfig().BurstSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "botkit"
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var issues []string
	if err := ValidateVersion(c.Version); err != nil {
		issues = append(issues, err.Error())
	}

	switch c.Bot.Platform {
	case PlatformMemory:
	case PlatformDiscord:
		if strings.TrimSpace(c.Bot.Token) == "" {
			issues = append(issues, "bot.token is required for the discord platform")
		}
	case PlatformGateway:
		if strings.TrimSpace(c.Bot.Token) == "" {
			issues = append(issues, "bot.token is required for the gateway platform")
		}
		if err := validateGatewayURL(c.Bot.GatewayURL); err != nil {
			issues = append(issues, "bot.gateway_url "+err.Error())
		}
	default:
		issues = append(issues, fmt.Sprintf("bot.platform %q must be one of discord, gateway, memory", c.Bot.Platform))
	}
	if strings.ContainsAny(c.Bot.Prefix, " \t\n") {
		issues = append(issues, "bot.prefix must not contain whitespace")
	}
	if c.Bot.DedupeTTL < 0 {
		issues = append(issues, "bot.dedupe_ttl must not be negative")
	}

	if c.Session.MaxRetry < 0 {
		issues = append(issues, "session.max_retry must not be negative")
	}
	if c.Session.RetryDuration < 0 {
		issues = append(issues, "session.retry_duration must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.BurstSize < 0 {
		issues = append(issues, "rate_limit values must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func validateGatewayURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("is required for the gateway platform")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme %q must be ws or wss", u.Scheme)
	}
	return nil
}
