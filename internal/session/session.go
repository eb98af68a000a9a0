// Package session owns the platform connection: login with optional
// exponential-backoff retry, automatic reconnect after transport failures,
// and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/botkit/internal/backoff"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/pkg/models"
)

// ErrRetriesExhausted is returned when the login loop runs out of attempts.
var ErrRetriesExhausted = backoff.ErrMaxAttemptsExhausted

// ErrRetryWindowElapsed is returned when the login loop runs out of time.
var ErrRetryWindowElapsed = backoff.ErrRetryWindowElapsed

// ErrNotConnected is returned by a Login that joined a loop which ended
// without connecting.
var ErrNotConnected = errors.New("session: not connected")

// State is the connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Retrying
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Retrying:
		return "retrying"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Manager.
type Options struct {
	// AutoRetry retries failed logins and reconnects after transport
	// failures.
	AutoRetry bool
	// MaxRetry bounds retries per login loop. Zero is unbounded.
	MaxRetry int
	// RetryDuration bounds the wall-clock time of one login loop. Zero is
	// unbounded.
	RetryDuration time.Duration
	// OnCrash receives login failures that end a login loop.
	OnCrash func(error)
	// OnAttempt is called after every connect attempt.
	OnAttempt func(attempt int, err error)
	// Policy defaults to backoff.SessionPolicy.
	Policy *backoff.BackoffPolicy

	Now    func() time.Time
	Sleep  backoff.SleepFunc
	Logger *slog.Logger
}

// Manager drives a platform.Transport through its connection lifecycle.
type Manager struct {
	transport platform.Transport
	opts      Options
	logger    *slog.Logger

	state atomic.Int32

	mu         sync.Mutex
	life       context.Context
	lifeCancel context.CancelFunc
	hooks      []func()
	nextID     int
	subs       map[int]func()
	listeners  map[int]func(from, to State)
	run        *loopRun
	wg         sync.WaitGroup
}

// New creates a Manager in the Disconnected state.
func New(transport platform.Transport, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Manager{
		transport:  transport,
		opts:       opts,
		logger:     logger.With("component", "session"),
		life:       life,
		lifeCancel: cancel,
		subs:       make(map[int]func()),
		listeners:  make(map[int]func(from, to State)),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// OnStateChange registers fn for every state transition. Listeners run on
// the goroutine that changed the state.
func (m *Manager) OnStateChange(fn func(from, to State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.logger.Debug("session state changed", "from", from.String(), "to", to.String())

	m.mu.Lock()
	listeners := make([]func(from, to State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(from, to)
	}
}

// Subscribe forwards transport events of kind to fn. The subscription is
// dropped by Disconnect.
func (m *Manager) Subscribe(kind models.EventKind, fn platform.EventHandler) (unsubscribe func()) {
	unsub := m.transport.OnEvent(kind, fn)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs[id] = unsub
	return func() {
		m.mu.Lock()
		fn, ok := m.subs[id]
		delete(m.subs, id)
		m.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Login connects the transport. It is a no-op when already connected.
// Without AutoRetry a single attempt is made; with it, attempts continue on
// the backoff schedule until one succeeds or a limit is reached. A failed
// login leaves the manager Disconnected, is passed to OnCrash when set, and
// is returned. While another login or reconnect loop is running, Login
// waits for that loop and reports its outcome instead of starting a second
// one.
func (m *Manager) Login(ctx context.Context) error {
	if m.State() == Connected {
		return nil
	}
	m.installHooks()

	run, owner := m.claim()
	if !owner {
		return m.join(ctx, run)
	}

	ctx, cancel := m.scoped(ctx)
	defer cancel()

	var err error
	if m.opts.AutoRetry {
		err = m.loop().Run(ctx, m.attempt)
	} else {
		err = m.attempt(ctx, 1)
	}
	if err != nil {
		err = fmt.Errorf("session: login: %w", err)
		m.setState(Disconnected)
		if ctx.Err() == nil {
			m.crash(err)
		}
		m.release(run, err)
		return err
	}
	m.release(run, nil)
	m.logger.Info("session connected")
	return nil
}

// loopRun is one login or reconnect loop. err is written before done is
// closed.
type loopRun struct {
	done chan struct{}
	err  error
}

// claim makes the caller the owner of the single running loop, or returns
// the loop already running.
func (m *Manager) claim() (*loopRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run != nil {
		return m.run, false
	}
	m.run = &loopRun{done: make(chan struct{})}
	return m.run, true
}

func (m *Manager) release(run *loopRun, err error) {
	m.mu.Lock()
	if m.run == run {
		m.run = nil
	}
	m.mu.Unlock()
	run.err = err
	close(run.done)
}

// join waits for a loop owned by someone else.
func (m *Manager) join(ctx context.Context, run *loopRun) error {
	select {
	case <-run.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if run.err != nil {
		return run.err
	}
	if m.State() != Connected {
		return ErrNotConnected
	}
	return nil
}

func (m *Manager) attempt(ctx context.Context, n int) error {
	m.setState(Connecting)
	err := m.transport.Connect(ctx)
	if m.opts.OnAttempt != nil {
		m.opts.OnAttempt(n, err)
	}
	if err != nil {
		return err
	}
	m.setState(Connected)
	return nil
}

func (m *Manager) loop() backoff.Loop {
	policy := backoff.SessionPolicy()
	if m.opts.Policy != nil {
		policy = *m.opts.Policy
	}
	return backoff.Loop{
		Policy:     policy,
		MaxRetries: m.opts.MaxRetry,
		MaxElapsed: m.opts.RetryDuration,
		Now:        m.opts.Now,
		Sleep:      m.opts.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			m.setState(Retrying)
			m.logger.Warn("login failed, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err)
		},
	}
}

func (m *Manager) crash(err error) {
	if m.opts.OnCrash != nil {
		m.opts.OnCrash(err)
		return
	}
	m.logger.Error("session login failed", "error", err)
}

// scoped derives a context that is also cancelled by Disconnect.
func (m *Manager) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	m.mu.Lock()
	life := m.life
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) installHooks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.hooks) > 0 {
		return
	}
	m.hooks = append(m.hooks,
		m.transport.OnError(func(err error) { m.connectionLost("error", err) }),
		m.transport.OnDisconnect(func(err error) { m.connectionLost("disconnect", err) }),
	)
}

// connectionLost starts at most one background login loop.
func (m *Manager) connectionLost(reason string, err error) {
	if m.State() != Connected {
		return
	}
	if !m.opts.AutoRetry {
		m.logger.Warn("connection lost", "reason", reason, "error", err)
		m.setState(Disconnected)
		return
	}
	run, owner := m.claim()
	if !owner {
		return
	}
	m.logger.Warn("connection lost, reconnecting", "reason", reason, "error", err)
	m.setState(Retrying)

	ctx, cancel := m.scoped(context.Background())
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		if err := m.loop().Run(ctx, m.attempt); err != nil {
			err = fmt.Errorf("session: reconnect: %w", err)
			if ctx.Err() == nil {
				m.setState(Disconnected)
				m.crash(err)
			}
			m.release(run, err)
			return
		}
		m.release(run, nil)
		m.logger.Info("session reconnected")
	}()
}

// Disconnect cancels any login loop, drops every subscription, closes the
// transport, and leaves the manager Disconnected. Calling it again is a
// no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.lifeCancel()
	m.life, m.lifeCancel = context.WithCancel(context.Background())
	release := make([]func(), 0, len(m.hooks)+len(m.subs))
	release = append(release, m.hooks...)
	for _, fn := range m.subs {
		release = append(release, fn)
	}
	m.hooks = nil
	m.subs = make(map[int]func())
	m.mu.Unlock()

	for _, fn := range release {
		fn()
	}
	m.wg.Wait()

	if m.State() == Disconnected && len(release) == 0 {
		return nil
	}
	err := m.transport.Close(ctx)
	m.setState(Disconnected)
	if err != nil {
		return fmt.Errorf("session: close transport: %w", err)
	}
	m.logger.Info("session disconnected")
	return nil
}
