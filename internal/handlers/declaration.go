// Package handlers describes bot handlers declaratively: what they respond
// to, which values they need, and who may call them. Declarations are built
// once at startup and never mutated afterwards.
package handlers

import (
	"context"
	"errors"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

// DefaultPrefix is the command prefix used when a declaration sets none.
const DefaultPrefix = "*"

// ErrInvalidDeclaration wraps every validation failure reported by Build.
var ErrInvalidDeclaration = errors.New("handlers: invalid declaration")

// HandlerFunc is invoked with the resolved argument list, in declaration
// order of its parameter requests.
type HandlerFunc func(ctx context.Context, args []any) error

// Declaration is the part shared by every handler kind.
type Declaration struct {
	// Owner is the group the handler was declared in.
	Owner string
	// Method names the handler within its group.
	Method  string
	Handler HandlerFunc
	Params  []ParamRequest
	// OwnerScope and Scope are unioned with the global scope at dispatch.
	OwnerScope access.Scope
	Scope      access.Scope
	// Guards run in order; group guards come first.
	Guards []access.GuardRef
}

// Name returns "<owner>.<method>" for logs and metrics.
func (d Declaration) Name() string {
	if d.Owner == "" {
		return d.Method
	}
	return d.Owner + "." + d.Method
}

// Command responds to prefixed text messages.
type Command struct {
	Declaration
	Command string
	Aliases []string
	Prefix  string
}

// Names returns the command name followed by its aliases.
func (c Command) Names() []string {
	return append([]string{c.Command}, c.Aliases...)
}

// Component responds to interactive component events such as button clicks.
type Component struct {
	Declaration
	Route     routing.Spec
	EventKind models.EventKind
}

// Event responds to any platform event kind.
type Event struct {
	Declaration
	EventKind models.EventKind
	Once      bool
}

// Registry lists the declarations the dispatch engine loads at startup.
type Registry interface {
	CommandHandlers() []Command
	ComponentHandlers() []Component
	EventHandlers() []Event
}

// Set is a static Registry.
type Set struct {
	Commands   []Command
	Components []Component
	Events     []Event
}

// CommandHandlers implements Registry.
func (s *Set) CommandHandlers() []Command { return s.Commands }

// ComponentHandlers implements Registry.
func (s *Set) ComponentHandlers() []Component { return s.Components }

// EventHandlers implements Registry.
func (s *Set) EventHandlers() []Event { return s.Events }

// Merge combines several registries, keeping their order.
func Merge(registries ...Registry) *Set {
	out := &Set{}
	for _, r := range registries {
		if r == nil {
			continue
		}
		out.Commands = append(out.Commands, r.CommandHandlers()...)
		out.Components = append(out.Components, r.ComponentHandlers()...)
		out.Events = append(out.Events, r.EventHandlers()...)
	}
	return out
}
