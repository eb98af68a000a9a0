package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

// options collects per-declaration settings before they are copied into the
// kind-specific declaration.
type options struct {
	method  string
	params  []ParamRequest
	scope   access.Scope
	guards  []access.GuardRef
	aliases []string
	prefix  string
	route   routing.Spec
	kind    models.EventKind
}

// Option configures one declaration.
type Option func(*options)

// WithName overrides the generated method name.
func WithName(method string) Option {
	return func(o *options) { o.method = method }
}

// WithParams appends parameter requests at consecutive positions.
func WithParams(reqs ...ParamRequest) Option {
	return func(o *options) {
		for _, r := range reqs {
			r.Index = len(o.params)
			o.params = append(o.params, r)
		}
	}
}

// WithParamAt places a request at an explicit position. Positions left
// unreferenced receive nil.
func WithParamAt(index int, req ParamRequest) Option {
	return func(o *options) {
		req.Index = index
		o.params = append(o.params, req)
	}
}

// WithScope restricts the handler to the scope, in addition to the group
// and global scopes.
func WithScope(scope access.Scope) Option {
	return func(o *options) { o.scope = access.Merge(o.scope, scope) }
}

// WithGuards appends guards after the group guards.
func WithGuards(refs ...access.GuardRef) Option {
	return func(o *options) { o.guards = append(o.guards, refs...) }
}

// WithAliases adds alternative command names.
func WithAliases(aliases ...string) Option {
	return func(o *options) { o.aliases = append(o.aliases, aliases...) }
}

// WithPrefix sets the command prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithID routes a component by exact id.
func WithID(id string) Option {
	return func(o *options) { o.route.ID = id }
}

// WithPattern routes a component by exact id, regular expression or named
// path pattern.
func WithPattern(pattern string) Option {
	return func(o *options) { o.route.Pattern = pattern }
}

// WithRegexp routes a component by a precompiled expression.
func WithRegexp(re *regexp.Regexp) Option {
	return func(o *options) { o.route.Regexp = re }
}

// WithSeparator sets the separator for positional captures.
func WithSeparator(sep string) Option {
	return func(o *options) { o.route.Separator = sep }
}

// ForEvent sets the event kind a component listens to. Defaults to button
// clicks.
func ForEvent(kind models.EventKind) Option {
	return func(o *options) { o.kind = kind }
}

// Builder assembles a Set through explicit registration calls.
type Builder struct {
	set  Set
	errs []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Group scopes a set of handlers under one owner name with shared scope and
// guards.
type Group struct {
	b      *Builder
	name   string
	scope  access.Scope
	guards []access.GuardRef
}

// GroupOption configures a group.
type GroupOption func(*Group)

// GroupScope restricts every handler of the group.
func GroupScope(scope access.Scope) GroupOption {
	return func(g *Group) { g.scope = access.Merge(g.scope, scope) }
}

// GroupGuards runs guards before every handler of the group.
func GroupGuards(refs ...access.GuardRef) GroupOption {
	return func(g *Group) { g.guards = append(g.guards, refs...) }
}

// Group starts a named group.
func (b *Builder) Group(name string, opts ...GroupOption) *Group {
	g := &Group{b: b, name: name}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Group) declaration(method string, fn HandlerFunc, o *options) Declaration {
	if o.method != "" {
		method = o.method
	}
	guards := make([]access.GuardRef, 0, len(g.guards)+len(o.guards))
	guards = append(guards, g.guards...)
	guards = append(guards, o.guards...)
	return Declaration{
		Owner:      g.name,
		Method:     method,
		Handler:    fn,
		Params:     o.params,
		OwnerScope: g.scope,
		Scope:      o.scope,
		Guards:     guards,
	}
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Command declares a text command.
func (g *Group) Command(name string, fn HandlerFunc, opts ...Option) *Group {
	o := collect(opts)
	name = strings.ToLower(strings.TrimSpace(name))
	decl := g.declaration("command:"+name, fn, o)

	cmd := Command{
		Declaration: decl,
		Command:     name,
		Prefix:      o.prefix,
	}
	if cmd.Prefix == "" {
		cmd.Prefix = DefaultPrefix
	}
	for _, alias := range o.aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" && alias != cmd.Command {
			cmd.Aliases = append(cmd.Aliases, alias)
		}
	}

	if cmd.Command == "" {
		g.b.fail(decl, errors.New("command name is required"))
	}
	if strings.ContainsAny(cmd.Command, " \t\n") {
		g.b.fail(decl, fmt.Errorf("command name %q contains whitespace", cmd.Command))
	}
	g.b.check(decl)
	g.b.set.Commands = append(g.b.set.Commands, cmd)
	return g
}

// Component declares an interactive component handler.
func (g *Group) Component(fn HandlerFunc, opts ...Option) *Group {
	o := collect(opts)
	decl := g.declaration("component:"+o.route.String(), fn, o)

	comp := Component{
		Declaration: decl,
		Route:       o.route,
		EventKind:   o.kind,
	}
	if comp.EventKind == "" {
		comp.EventKind = models.EventButtonClicked
	}
	if _, err := routing.Compile(comp.Route); err != nil {
		g.b.fail(decl, err)
	}
	g.b.check(decl)
	g.b.set.Components = append(g.b.set.Components, comp)
	return g
}

// On declares a handler for every event of kind.
func (g *Group) On(kind models.EventKind, fn HandlerFunc, opts ...Option) *Group {
	return g.event(kind, false, fn, opts)
}

// Once declares a handler that is unbound after its first event of kind.
func (g *Group) Once(kind models.EventKind, fn HandlerFunc, opts ...Option) *Group {
	return g.event(kind, true, fn, opts)
}

func (g *Group) event(kind models.EventKind, once bool, fn HandlerFunc, opts []Option) *Group {
	o := collect(opts)
	prefix := "on:"
	if once {
		prefix = "once:"
	}
	decl := g.declaration(prefix+string(kind), fn, o)
	if kind == "" {
		g.b.fail(decl, errors.New("event kind is required"))
	}
	g.b.check(decl)
	g.b.set.Events = append(g.b.set.Events, Event{Declaration: decl, EventKind: kind, Once: once})
	return g
}

// check validates the parts shared by every kind.
func (b *Builder) check(decl Declaration) {
	if decl.Handler == nil {
		b.fail(decl, errors.New("handler function is required"))
	}
	seen := make(map[int]bool, len(decl.Params))
	for _, p := range decl.Params {
		switch {
		case p.Index < 0:
			b.fail(decl, fmt.Errorf("parameter %s has a negative position", p))
		case seen[p.Index]:
			b.fail(decl, fmt.Errorf("parameter position %d requested twice", p.Index))
		case !p.Kind.Valid():
			b.fail(decl, fmt.Errorf("parameter %d has unknown kind %s", p.Index, p.Kind))
		}
		seen[p.Index] = true
	}
}

func (b *Builder) fail(decl Declaration, err error) {
	b.errs = append(b.errs, fmt.Errorf("%w: %s: %w", ErrInvalidDeclaration, decl.Name(), err))
}

// Build returns the declared handlers, or every validation error joined.
func (b *Builder) Build() (*Set, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	out := b.set
	return &out, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Set {
	set, err := b.Build()
	if err != nil {
		panic(err)
	}
	return set
}
