package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/config"
	"github.com/haasonsaas/botkit/internal/dispatch"
	"github.com/haasonsaas/botkit/internal/observability"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/platform/discord"
	"github.com/haasonsaas/botkit/internal/platform/gateway"
	"github.com/haasonsaas/botkit/internal/platform/memory"
	"github.com/haasonsaas/botkit/internal/ratelimit"
	"github.com/haasonsaas/botkit/internal/session"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	configPath string
	platform   string
	debug      bool
	watch      bool
}

// loadConfig falls back to defaults when the default config file is absent.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		return config.Default(), false, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// runServe implements the serve command.
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, fromFile, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.platform != "" {
		cfg.Bot.Platform = strings.ToLower(opts.platform)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting botkit",
		"version", version,
		"commit", commit,
		"config", opts.configPath,
		"platform", cfg.Bot.Platform,
	)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	tracer, shutdownTracing := observability.NewTracer(cfg.Tracing)

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	guards, err := newGuards(cfg)
	if err != nil {
		return err
	}

	engine, err := dispatch.New(dispatch.Options{
		BotID:        cfg.Bot.BotID,
		GlobalScope:  cfg.Restricts,
		DedupeWindow: cfg.Bot.DedupeTTL,
		DirectoryTTL: time.Minute,
		Session: session.Options{
			AutoRetry:     cfg.Session.AutoRetry,
			MaxRetry:      cfg.Session.MaxRetry,
			RetryDuration: cfg.Session.RetryDuration,
			OnCrash: func(err error) {
				logger.Error("session gave up", "error", err)
			},
		},
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
	}, dispatch.Deps{Client: client, Guards: guards})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := engine.Load(demoHandlers(cfg.Bot.Prefix)); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics, metrics, logger)
	}

	if opts.watch && fromFile {
		watcher, err := config.Watch(ctx, opts.configPath, config.WatchOptions{Logger: logger}, func(next *config.Config) {
			engine.SetGlobalScope(next.Restricts)
			logger.Info("restricts reloaded",
				"clans", len(next.Restricts.Clans),
				"channels", len(next.Restricts.Channels),
				"users", len(next.Restricts.Users))
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	logger.Info("botkit started", "commands", engine.Commands().Len())

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := engine.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("botkit stopped")
	return nil
}

// newClient builds the platform client cfg selects.
func newClient(cfg *config.Config, logger *slog.Logger) (platform.Client, error) {
	switch cfg.Bot.Platform {
	case config.PlatformDiscord:
		return discord.NewAdapter(discord.Config{
			Token:  cfg.Bot.Token,
			Logger: logger,
		})
	case config.PlatformGateway:
		return gateway.New(gateway.Config{
			URL:      cfg.Bot.GatewayURL,
			Token:    cfg.Bot.Token,
			ClientID: cfg.Bot.ClientID,
			Logger:   logger,
		})
	case config.PlatformMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Bot.Platform)
	}
}

const rateLimitGuard = "rate-limit"

func newGuards(cfg *config.Config) (*access.GuardRegistry, error) {
	guards := access.NewGuardRegistry()
	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	if err := guards.RegisterSingleton(rateLimitGuard, access.RateLimit(limiter)); err != nil {
		return nil, err
	}
	return guards, nil
}

func startMetricsServer(cfg config.MetricsConfig, metrics *observability.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// runRoutes loads the demo handlers into an engine on the memory platform
// and prints its route tables.
func runRoutes(cmd *cobra.Command, prefix string) error {
	engine, err := dispatch.New(dispatch.Options{
		Logger: slog.New(slog.DiscardHandler),
	}, dispatch.Deps{Client: memory.New()})
	if err != nil {
		return err
	}
	if err := engine.Load(demoHandlers(prefix)); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tROUTE\tHANDLER")
	for _, c := range engine.Commands().List() {
		fmt.Fprintf(w, "command\t%s%s\t%s\n", c.Prefix, strings.Join(c.Names(), "|"), c.Name())
	}
	for _, c := range engine.Components().List() {
		fmt.Fprintf(w, "component\t%s\t%s\n", c.Route.String(), c.Name())
	}
	for _, ev := range engine.Events() {
		fmt.Fprintf(w, "event\t%s\t%s\n", ev.EventKind, ev.Name())
	}
	return w.Flush()
}

func runConfigValidate(cmd *cobra.Command, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			out := cmd.ErrOrStderr()
			for _, issue := range verr.Issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (version %d, platform %s)\n", path, cfg.Version, cfg.Bot.Platform)
	return nil
}
