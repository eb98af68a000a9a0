package components

import (
	"context"
	"regexp"
	"testing"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

func noop(context.Context, []any) error { return nil }

func comp(owner string, spec routing.Spec) handlers.Component {
	return handlers.Component{
		Declaration: handlers.Declaration{Owner: owner, Method: "m", Handler: noop},
		Route:       spec,
	}
}

type inlineSet map[string]bool

func (s inlineSet) Has(id string) bool { return s[id] }

func click(buttonID string) *models.ButtonClicked {
	return &models.ButtonClicked{ButtonID: buttonID, MessageID: "m1", ChannelID: "c1", ClanID: "k1", UserID: "u1"}
}

func owners(res Result) []string {
	out := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		out[i] = c.Component.Owner
	}
	return out
}

func TestRouter_AllMatchesFire(t *testing.T) {
	r := NewRouter(nil, nil)
	err := r.Register(
		comp("Exact", routing.Spec{ID: "update_cancel_123"}),
		comp("Regexp", routing.Spec{Pattern: `^update_`}),
		comp("Other", routing.Spec{Pattern: `^delete_`}),
		comp("Named", routing.Spec{Pattern: "/vote/:poll"}),
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := r.Route(models.EventButtonClicked, click("update_cancel_123"), access.Scope{})
	if got := owners(res); len(got) != 2 || got[0] != "Exact" || got[1] != "Regexp" {
		t.Fatalf("candidates = %v, want [Exact Regexp]", got)
	}
	if p := res.Candidates[1].Match.Positional; len(p) != 3 || p[2] != "123" {
		t.Errorf("positional = %v", p)
	}

	res = r.Route(models.EventButtonClicked, click("/vote/p1"), access.Scope{})
	if len(res.Candidates) != 1 || res.Candidates[0].Match.Named["poll"] != "p1" {
		t.Errorf("named route = %+v", res.Candidates)
	}
}

func TestRouter_InlineTakesPrecedence(t *testing.T) {
	r := NewRouter(inlineSet{"btn_1": true}, nil)
	_ = r.Register(comp("Catchall", routing.Spec{Regexp: regexp.MustCompile(`.*`)}))

	res := r.Route(models.EventButtonClicked, click("btn_1"), access.Scope{})
	if !res.Inline || len(res.Candidates) != 0 {
		t.Errorf("Route() = %+v, want inline only", res)
	}
	res = r.Route(models.EventButtonClicked, click("btn_2"), access.Scope{})
	if res.Inline || len(res.Candidates) != 1 {
		t.Errorf("Route() = %+v, want structural match", res)
	}
}

func TestRouter_ScopeFiltering(t *testing.T) {
	r := NewRouter(nil, nil)
	restricted := comp("Restricted", routing.Spec{ID: "go"})
	restricted.OwnerScope = access.Scope{Channels: []string{"c9"}}
	methodScoped := comp("Method", routing.Spec{ID: "go"})
	methodScoped.Scope = access.Scope{Users: []string{"u1"}}
	_ = r.Register(restricted, methodScoped, comp("Open", routing.Spec{ID: "go"}))

	res := r.Route(models.EventButtonClicked, click("go"), access.Scope{})
	if got := owners(res); len(got) != 2 || got[0] != "Method" || got[1] != "Open" {
		t.Errorf("candidates = %v, want [Method Open]", got)
	}

	// The global scope is unioned with each declaration's own scope.
	res = r.Route(models.EventButtonClicked, click("go"), access.Scope{Channels: []string{"c1"}})
	if got := owners(res); len(got) != 3 {
		t.Errorf("candidates with global scope = %v, want all three", got)
	}

	res = r.Route(models.EventButtonClicked, click("go"), access.Scope{Clans: []string{"k2"}})
	if got := owners(res); len(got) != 0 {
		t.Errorf("candidates outside global clans = %v, want none", got)
	}
}

func TestRouter_EventKinds(t *testing.T) {
	r := NewRouter(nil, nil)
	dropdown := comp("Menu", routing.Spec{ID: "menu"})
	dropdown.EventKind = models.EventDropdownSelected
	_ = r.Register(dropdown, comp("Button", routing.Spec{ID: "menu"}))

	res := r.Route(models.EventDropdownSelected, click("menu"), access.Scope{})
	if got := owners(res); len(got) != 1 || got[0] != "Menu" {
		t.Errorf("dropdown candidates = %v", got)
	}
	if len(r.List()) != 2 {
		t.Errorf("List() = %d components", len(r.List()))
	}
}

func TestRouter_RegisterErrors(t *testing.T) {
	r := NewRouter(nil, nil)
	err := r.Register(comp("Good", routing.Spec{ID: "a"}), comp("Bad", routing.Spec{Pattern: "(["}))
	if err == nil {
		t.Fatal("expected compile error")
	}
	if len(r.List()) != 0 {
		t.Error("partial registration after error")
	}
	if res := r.Route(models.EventButtonClicked, &models.ButtonClicked{}, access.Scope{}); len(res.Candidates) != 0 || res.Inline {
		t.Errorf("empty button id routed: %+v", res)
	}
}
