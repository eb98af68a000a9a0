package handlers

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/pkg/models"
)

func noop(context.Context, []any) error { return nil }

func TestBuilder_Command(t *testing.T) {
	b := NewBuilder()
	b.Group("Greeting").
		Command(" Ping ", noop, WithAliases("P", "ping", ""), WithParams(Context(), Args()))

	set, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(set.Commands) != 1 {
		t.Fatalf("len(Commands) = %d, want 1", len(set.Commands))
	}
	cmd := set.Commands[0]
	if cmd.Command != "ping" {
		t.Errorf("Command = %q, want ping", cmd.Command)
	}
	if !reflect.DeepEqual(cmd.Aliases, []string{"p"}) {
		t.Errorf("Aliases = %v, want [p]", cmd.Aliases)
	}
	if cmd.Prefix != DefaultPrefix {
		t.Errorf("Prefix = %q, want %q", cmd.Prefix, DefaultPrefix)
	}
	if cmd.Name() != "Greeting.command:ping" {
		t.Errorf("Name() = %q, want Greeting.command:ping", cmd.Name())
	}
	if got := []int{cmd.Params[0].Index, cmd.Params[1].Index}; !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("param indexes = %v, want [0 1]", got)
	}
	if cmd.Params[1].Kind != ParamArgs {
		t.Errorf("Params[1].Kind = %s, want args", cmd.Params[1].Kind)
	}
}

func TestBuilder_GroupScopeAndGuards(t *testing.T) {
	groupGuard := access.Registered("group")
	methodGuard := access.Registered("method")

	b := NewBuilder()
	b.Group("Admin",
		GroupScope(access.Scope{Clans: []string{"k1"}}),
		GroupGuards(groupGuard),
	).Command("ban", noop,
		WithScope(access.Scope{Users: []string{"u1"}}),
		WithGuards(methodGuard),
		WithName("Ban"),
	)

	set := b.MustBuild()
	cmd := set.Commands[0]
	if cmd.Name() != "Admin.Ban" {
		t.Errorf("Name() = %q, want Admin.Ban", cmd.Name())
	}
	if !reflect.DeepEqual(cmd.OwnerScope.Clans, []string{"k1"}) {
		t.Errorf("OwnerScope = %+v", cmd.OwnerScope)
	}
	if !reflect.DeepEqual(cmd.Scope.Users, []string{"u1"}) {
		t.Errorf("Scope = %+v", cmd.Scope)
	}
	want := []access.GuardRef{groupGuard, methodGuard}
	if !reflect.DeepEqual(cmd.Guards, want) {
		t.Errorf("Guards = %v, want group guard first", cmd.Guards)
	}
}

func TestBuilder_Component(t *testing.T) {
	b := NewBuilder()
	b.Group("Votes").
		Component(noop, WithPattern("/vote/:poll/:option"), WithParams(ComponentParam("poll"))).
		Component(noop, WithID("menu"), ForEvent(models.EventDropdownSelected))

	set := b.MustBuild()
	if len(set.Components) != 2 {
		t.Fatalf("len(Components) = %d, want 2", len(set.Components))
	}
	if set.Components[0].EventKind != models.EventButtonClicked {
		t.Errorf("default EventKind = %q", set.Components[0].EventKind)
	}
	if set.Components[1].EventKind != models.EventDropdownSelected {
		t.Errorf("EventKind = %q", set.Components[1].EventKind)
	}
	if set.Components[0].Method != "component:/vote/:poll/:option" {
		t.Errorf("Method = %q", set.Components[0].Method)
	}
}

func TestBuilder_Events(t *testing.T) {
	b := NewBuilder()
	b.Group("Lifecycle").
		On(models.EventAddClanUser, noop).
		Once(models.EventReady, noop)

	set := b.MustBuild()
	if len(set.Events) != 2 {
		t.Fatalf("len(Events) = %d", len(set.Events))
	}
	if set.Events[0].Once || !set.Events[1].Once {
		t.Errorf("Once flags = %v, %v", set.Events[0].Once, set.Events[1].Once)
	}
}

func TestBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		declare func(g *Group)
		wantMsg string
	}{
		{
			name:    "empty command",
			declare: func(g *Group) { g.Command("  ", noop) },
			wantMsg: "command name is required",
		},
		{
			name:    "whitespace in command",
			declare: func(g *Group) { g.Command("two words", noop) },
			wantMsg: "contains whitespace",
		},
		{
			name:    "nil handler",
			declare: func(g *Group) { g.Command("x", nil) },
			wantMsg: "handler function is required",
		},
		{
			name:    "empty component route",
			declare: func(g *Group) { g.Component(noop) },
			wantMsg: "spec needs an id or a pattern",
		},
		{
			name:    "bad regexp",
			declare: func(g *Group) { g.Component(noop, WithPattern("([")) },
			wantMsg: "compile pattern",
		},
		{
			name: "duplicate position",
			declare: func(g *Group) {
				g.Command("x", noop, WithParamAt(1, Context()), WithParamAt(1, Args()))
			},
			wantMsg: "requested twice",
		},
		{
			name:    "negative position",
			declare: func(g *Group) { g.Command("x", noop, WithParamAt(-1, Context())) },
			wantMsg: "negative position",
		},
		{
			name:    "unknown kind",
			declare: func(g *Group) { g.Command("x", noop, WithParams(ParamRequest{Kind: 99})) },
			wantMsg: "unknown kind",
		},
		{
			name:    "missing event kind",
			declare: func(g *Group) { g.On("", noop) },
			wantMsg: "event kind is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.declare(b.Group("G"))
			_, err := b.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidDeclaration) {
				t.Errorf("error %v does not wrap ErrInvalidDeclaration", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestMergeRegistries(t *testing.T) {
	a := NewBuilder()
	a.Group("A").Command("one", noop)
	b := NewBuilder()
	b.Group("B").Command("two", noop).On(models.EventReady, noop)

	merged := Merge(a.MustBuild(), nil, b.MustBuild())
	if len(merged.CommandHandlers()) != 2 || len(merged.EventHandlers()) != 1 {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.Commands[0].Command != "one" || merged.Commands[1].Command != "two" {
		t.Errorf("order not preserved: %v, %v", merged.Commands[0].Command, merged.Commands[1].Command)
	}
}

func TestParamRequestString(t *testing.T) {
	tests := []struct {
		req  ParamRequest
		want string
	}{
		{req: Arg(2), want: "0:arg[2]"},
		{req: Channel("name"), want: "0:channel.name"},
		{req: Clan(), want: "0:clan"},
		{req: ParamRequest{Kind: 99}, want: "0:ParamKind(99)"},
	}
	for _, tt := range tests {
		if got := tt.req.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOptionalSelectors(t *testing.T) {
	if !Mentions().Selector.IsZero() {
		t.Error("Mentions() should have no selector")
	}
	if sel := Mentions(0).Selector; !sel.HasIndex || sel.Index != 0 {
		t.Errorf("Mentions(0).Selector = %+v", sel)
	}
	if sel := User("username").Selector; sel.Name != "username" {
		t.Errorf("User(username).Selector = %+v", sel)
	}
	if !User("").Selector.IsZero() {
		t.Error("empty field selector should be zero")
	}
}
