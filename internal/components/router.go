// Package components routes interactive component events (button clicks,
// dropdown selections) to declared handlers.
package components

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

// InlineLookup reports whether a button id has an ad hoc handler.
type InlineLookup interface {
	Has(buttonID string) bool
}

// Candidate is a declaration whose route matched.
type Candidate struct {
	Component handlers.Component
	Match     routing.Match
}

// Result is the outcome of routing one click.
type Result struct {
	// Inline is set when the button id has an inline handler; structural
	// routes are then skipped.
	Inline     bool
	Candidates []Candidate
}

type entry struct {
	comp  handlers.Component
	match routing.Matcher
}

// Router holds compiled component routes. Every matching route fires.
type Router struct {
	mu      sync.RWMutex
	entries map[models.EventKind][]entry
	order   []handlers.Component
	inline  InlineLookup
	logger  *slog.Logger
}

// NewRouter creates a router. inline may be nil.
func NewRouter(inline InlineLookup, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		entries: make(map[models.EventKind][]entry),
		inline:  inline,
		logger:  logger.With("component", "components"),
	}
}

// Register compiles and adds components. Nothing is added if any route
// fails to compile.
func (r *Router) Register(comps ...handlers.Component) error {
	compiled := make([]entry, 0, len(comps))
	for _, c := range comps {
		if c.Handler == nil {
			return fmt.Errorf("component %s: handler is required", c.Name())
		}
		m, err := routing.Compile(c.Route)
		if err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
		if c.EventKind == "" {
			c.EventKind = models.EventButtonClicked
		}
		compiled = append(compiled, entry{comp: c, match: m})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range compiled {
		r.entries[e.comp.EventKind] = append(r.entries[e.comp.EventKind], e)
		r.order = append(r.order, e.comp)
		r.logger.Debug("registered component",
			"route", e.comp.Route.String(),
			"event", e.comp.EventKind,
			"handler", e.comp.Name())
	}
	return nil
}

// Route returns the inline flag or every in-scope declaration for kind
// whose route matches the click's button id.
func (r *Router) Route(kind models.EventKind, click *models.ButtonClicked, global access.Scope) Result {
	if click == nil || click.ButtonID == "" {
		return Result{}
	}
	if r.inline != nil && r.inline.Has(click.ButtonID) {
		return Result{Inline: true}
	}

	id := access.Identity{ClanID: click.ClanID, ChannelID: click.ChannelID, UserID: click.UserID}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out Result
	for _, e := range r.entries[kind] {
		scope := access.Merge(global, e.comp.OwnerScope, e.comp.Scope)
		if !scope.Allows(id) {
			continue
		}
		m := e.match(click.ButtonID)
		if !m.Matched {
			continue
		}
		out.Candidates = append(out.Candidates, Candidate{Component: e.comp, Match: m})
	}
	return out
}

// List returns every registered component in registration order.
func (r *Router) List() []handlers.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]handlers.Component, len(r.order))
	copy(out, r.order)
	return out
}
