// Package dispatch wires the routers, access control and parameter
// resolution into the runtime that receives platform events and invokes
// handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/cache"
	"github.com/haasonsaas/botkit/internal/commands"
	"github.com/haasonsaas/botkit/internal/components"
	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/internal/mentions"
	"github.com/haasonsaas/botkit/internal/messaging"
	"github.com/haasonsaas/botkit/internal/observability"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/session"
	"github.com/haasonsaas/botkit/pkg/models"
)

// ErrNoClient is returned by New when Deps carries no platform client.
var ErrNoClient = errors.New("dispatch: platform client is required")

// Options configures an Engine.
type Options struct {
	// BotID is the bot's own user id; its messages are ignored. When empty
	// the client is asked through an optional BotID() method.
	BotID string
	// GlobalScope restricts every declaration in addition to its own scope.
	GlobalScope access.Scope
	// DedupeWindow drops redelivered messages seen within the window. Zero
	// disables deduplication.
	DedupeWindow time.Duration
	// DirectoryTTL caches user and channel lookups. Zero disables caching.
	DirectoryTTL time.Duration

	Session session.Options

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Deps are the collaborators an Engine runs against.
type Deps struct {
	Client platform.Client
	// Tokens enables token transfers through the utils handle. Defaults to
	// the client when it implements platform.TokenSender.
	Tokens platform.TokenSender
	// Guards resolves registered guard ids. Nil accepts inline guards only.
	Guards access.GuardResolver
}

type botIdentity interface {
	BotID() string
}

type eventEntry struct {
	decl  handlers.Event
	fired atomic.Bool
}

// Engine receives platform events and dispatches them to handlers.
type Engine struct {
	opts    Options
	client  platform.Client
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	session    *session.Manager
	commands   *commands.Router
	components *components.Router
	clicks     *messaging.ClickRegistry
	toolkit    *messaging.Toolkit
	utils      *platform.Utils
	guards     *access.Chain
	dedupe     *cache.Dedupe

	global atomic.Pointer[access.Scope]

	mu       sync.RWMutex
	events   map[models.EventKind][]*eventEntry
	unsubs   []func()
	stopping bool
	base     context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates an engine. Handlers are added with Load.
func New(opts Options, deps Deps) (*Engine, error) {
	if deps.Client == nil {
		return nil, ErrNoClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens := deps.Tokens
	if tokens == nil {
		tokens, _ = deps.Client.(platform.TokenSender)
	}
	var dir platform.Directory = deps.Client
	if opts.DirectoryTTL > 0 {
		dir = platform.NewCachedDirectory(deps.Client, opts.DirectoryTTL)
	}

	utils := platform.NewUtils(dir, deps.Client, tokens, logger)
	utils.OnLookupFailure = opts.Metrics.RecordLookupFailure
	clicks := messaging.NewClickRegistry()
	roles := mentions.NewRoleCache(deps.Client, logger)

	e := &Engine{
		opts:       opts,
		client:     deps.Client,
		logger:     logger.With("component", "dispatch"),
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		commands:   commands.NewRouter(logger),
		components: components.NewRouter(clicks, logger),
		clicks:     clicks,
		toolkit:    messaging.NewToolkit(deps.Client, utils, roles, clicks, logger),
		utils:      utils,
		guards:     access.NewChain(deps.Guards, logger),
		events:     make(map[models.EventKind][]*eventEntry),
	}
	e.toolkit.SetTracer(opts.Tracer)
	if opts.DedupeWindow > 0 {
		e.dedupe = cache.NewDedupe(opts.DedupeWindow, 10000)
	}
	e.SetGlobalScope(opts.GlobalScope)

	sessOpts := opts.Session
	if sessOpts.Logger == nil {
		sessOpts.Logger = logger
	}
	onAttempt := sessOpts.OnAttempt
	sessOpts.OnAttempt = func(attempt int, err error) {
		e.metrics.RecordLogin(err)
		if onAttempt != nil {
			onAttempt(attempt, err)
		}
	}
	e.session = session.New(deps.Client, sessOpts)
	e.session.OnStateChange(e.stateChanged)
	return e, nil
}

// Load registers every declaration of reg. It can be called more than once
// before Start; a failing call leaves earlier registrations in place.
func (e *Engine) Load(reg handlers.Registry) error {
	if reg == nil {
		return nil
	}
	if err := e.commands.Register(reg.CommandHandlers()...); err != nil {
		return fmt.Errorf("dispatch: load commands: %w", err)
	}
	if err := e.components.Register(reg.ComponentHandlers()...); err != nil {
		return fmt.Errorf("dispatch: load components: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range reg.EventHandlers() {
		if ev.Handler == nil || ev.EventKind == "" {
			return fmt.Errorf("dispatch: load event %s: %w", ev.Name(), handlers.ErrInvalidDeclaration)
		}
		e.events[ev.EventKind] = append(e.events[ev.EventKind], &eventEntry{decl: ev})
	}
	return nil
}

// Start subscribes to the transport and logs in.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return nil
	}
	e.stopping = false
	e.base, e.cancel = context.WithCancel(context.WithoutCancel(ctx))

	kinds := map[models.EventKind]bool{
		models.EventChannelMessage:   true,
		models.EventButtonClicked:    true,
		models.EventDropdownSelected: true,
	}
	for kind := range e.events {
		kinds[kind] = true
	}
	for kind := range kinds {
		e.unsubs = append(e.unsubs, e.session.Subscribe(kind, e.receive))
	}
	e.mu.Unlock()

	e.logger.Info("starting dispatch engine",
		"commands", e.commands.Len(),
		"components", len(e.components.List()),
		"events", e.eventCount())

	if err := e.session.Login(ctx); err != nil {
		_ = e.Stop(context.WithoutCancel(ctx))
		return fmt.Errorf("dispatch: start: %w", err)
	}
	return nil
}

// Stop unsubscribes, waits for in-flight dispatches until ctx is done and
// disconnects the session.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	unsubs := e.unsubs
	e.unsubs = nil
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("stopping with dispatches still running", "error", ctx.Err())
	}
	if cancel != nil {
		cancel()
	}
	return e.session.Disconnect(ctx)
}

// Wait blocks until every in-flight dispatch has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// SetGlobalScope replaces the scope applied to every declaration.
func (e *Engine) SetGlobalScope(scope access.Scope) {
	e.global.Store(&scope)
}

// GlobalScope returns the current global scope.
func (e *Engine) GlobalScope() access.Scope {
	if s := e.global.Load(); s != nil {
		return *s
	}
	return access.Scope{}
}

// Session returns the session manager.
func (e *Engine) Session() *session.Manager { return e.session }

// Commands returns the command router.
func (e *Engine) Commands() *commands.Router { return e.commands }

// Components returns the component router.
func (e *Engine) Components() *components.Router { return e.components }

// Toolkit returns the outbound messaging toolkit.
func (e *Engine) Toolkit() *messaging.Toolkit { return e.toolkit }

// Clicks returns the inline click handler registry.
func (e *Engine) Clicks() *messaging.ClickRegistry { return e.clicks }

// Events returns the generic event declarations ordered by event kind.
func (e *Engine) Events() []handlers.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []handlers.Event
	for _, kind := range slices.Sorted(maps.Keys(e.events)) {
		for _, en := range e.events[kind] {
			out = append(out, en.decl)
		}
	}
	return out
}

func (e *Engine) eventCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, entries := range e.events {
		n += len(entries)
	}
	return n
}

func (e *Engine) botID() string {
	if e.opts.BotID != "" {
		return e.opts.BotID
	}
	if b, ok := e.client.(botIdentity); ok {
		return b.BotID()
	}
	return ""
}

var sessionStates = []string{
	session.Disconnected.String(),
	session.Connecting.String(),
	session.Connected.String(),
	session.Retrying.String(),
}

func (e *Engine) stateChanged(from, to session.State) {
	e.metrics.SetSessionState(to.String(), sessionStates...)
	e.logger.Info("session state changed", "from", from.String(), "to", to.String())
}

// receive runs on the transport's goroutine; every event gets its own
// dispatch goroutine.
func (e *Engine) receive(_ context.Context, ev *models.Event) {
	if ev == nil {
		return
	}
	e.mu.RLock()
	if e.stopping || e.base == nil {
		e.mu.RUnlock()
		return
	}
	base := e.base
	e.inflight.Add(1)
	e.mu.RUnlock()

	go func() {
		defer e.inflight.Done()
		e.Dispatch(base, ev)
	}()
}
