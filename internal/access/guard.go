package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/botkit/internal/ratelimit"
	"github.com/haasonsaas/botkit/pkg/models"
)

// ErrUnknownGuard is returned when a registered guard id has no entry.
var ErrUnknownGuard = errors.New("access: unknown guard")

// GuardInput is what a guard sees about the pending invocation.
type GuardInput struct {
	// Handler identifies the declaration, "<owner>.<method>".
	Handler  string
	Kind     models.EventKind
	Event    *models.Event
	Identity Identity
	// Args holds command arguments or component captures.
	Args []string
}

// Guard approves or rejects an invocation.
type Guard interface {
	CanActivate(ctx context.Context, in *GuardInput) (bool, error)
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, in *GuardInput) (bool, error)

// CanActivate implements Guard.
func (f GuardFunc) CanActivate(ctx context.Context, in *GuardInput) (bool, error) {
	return f(ctx, in)
}

// GuardRef points at a guard either directly or by registry id.
type GuardRef struct {
	inline Guard
	id     string
}

// Inline references a guard value.
func Inline(g Guard) GuardRef {
	return GuardRef{inline: g}
}

// InlineFunc references a guard function.
func InlineFunc(fn func(ctx context.Context, in *GuardInput) (bool, error)) GuardRef {
	return GuardRef{inline: GuardFunc(fn)}
}

// Registered references a guard registered under id.
func Registered(id string) GuardRef {
	return GuardRef{id: id}
}

// String identifies the ref in logs.
func (r GuardRef) String() string {
	if r.inline != nil {
		return fmt.Sprintf("inline(%T)", r.inline)
	}
	return "registered(" + r.id + ")"
}

// GuardResolver turns a ref into a guard instance.
type GuardResolver interface {
	ResolveGuard(ref GuardRef) (Guard, error)
}

// GuardRegistry resolves registered guard ids. Stateless guards are
// registered once as singletons; stateful ones through a factory that is
// called on every check.
type GuardRegistry struct {
	mu         sync.RWMutex
	singletons map[string]Guard
	factories  map[string]func() Guard
}

// NewGuardRegistry creates an empty registry.
func NewGuardRegistry() *GuardRegistry {
	return &GuardRegistry{
		singletons: make(map[string]Guard),
		factories:  make(map[string]func() Guard),
	}
}

// RegisterSingleton registers a shared guard instance.
func (r *GuardRegistry) RegisterSingleton(id string, g Guard) error {
	if id == "" || g == nil {
		return fmt.Errorf("access: guard id and instance are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exists(id) {
		return fmt.Errorf("access: guard %q already registered", id)
	}
	r.singletons[id] = g
	return nil
}

// RegisterFactory registers a constructor invoked for every check.
func (r *GuardRegistry) RegisterFactory(id string, factory func() Guard) error {
	if id == "" || factory == nil {
		return fmt.Errorf("access: guard id and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exists(id) {
		return fmt.Errorf("access: guard %q already registered", id)
	}
	r.factories[id] = factory
	return nil
}

func (r *GuardRegistry) exists(id string) bool {
	_, s := r.singletons[id]
	_, f := r.factories[id]
	return s || f
}

// ResolveGuard implements GuardResolver.
func (r *GuardRegistry) ResolveGuard(ref GuardRef) (Guard, error) {
	if ref.inline != nil {
		return ref.inline, nil
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGuard, ref.id)
	}
	r.mu.RLock()
	g, ok := r.singletons[ref.id]
	factory := r.factories[ref.id]
	r.mu.RUnlock()

	if ok {
		return g, nil
	}
	if factory != nil {
		if g := factory(); g != nil {
			return g, nil
		}
		return nil, fmt.Errorf("access: guard factory %q returned nil", ref.id)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownGuard, ref.id)
}

// Chain evaluates guard refs in order.
type Chain struct {
	resolver GuardResolver
	logger   *slog.Logger
}

// NewChain creates a chain. A nil resolver only accepts inline refs.
func NewChain(resolver GuardResolver, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = (*GuardRegistry)(nil)
	}
	return &Chain{resolver: resolver, logger: logger.With("component", "guards")}
}

// Run returns true when every guard approves. It stops at the first
// rejection, error or unresolvable ref.
func (c *Chain) Run(ctx context.Context, refs []GuardRef, in *GuardInput) bool {
	for _, ref := range refs {
		g, err := c.resolver.ResolveGuard(ref)
		if err != nil {
			c.logger.Warn("guard resolution failed",
				"handler", in.Handler,
				"guard", ref.String(),
				"error", err)
			return false
		}
		ok, err := g.CanActivate(ctx, in)
		if err != nil {
			c.logger.Warn("guard failed",
				"handler", in.Handler,
				"guard", ref.String(),
				"error", err)
			return false
		}
		if !ok {
			c.logger.Debug("guard rejected invocation",
				"handler", in.Handler,
				"guard", ref.String(),
				"user_id", in.Identity.UserID)
			return false
		}
	}
	return true
}

// RateLimit rejects users that exceed the limiter's budget.
func RateLimit(limiter *ratelimit.Limiter) Guard {
	return GuardFunc(func(_ context.Context, in *GuardInput) (bool, error) {
		key := in.Identity.UserID
		if key == "" {
			key = in.Identity.ChannelID
		}
		return limiter.Allow(key), nil
	})
}

// AllowUsers approves only the listed user ids.
func AllowUsers(ids ...string) Guard {
	scope := Scope{Users: ids}
	return GuardFunc(func(_ context.Context, in *GuardInput) (bool, error) {
		return scope.Allows(Identity{UserID: in.Identity.UserID}), nil
	})
}
