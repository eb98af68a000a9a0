package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/cache"
	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/internal/observability"
	"github.com/haasonsaas/botkit/internal/params"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

// ErrHandlerPanic wraps a value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("dispatch: handler panicked")

// Router labels used in logs and metrics.
const (
	RouterCommand   = "command"
	RouterComponent = "component"
	RouterInline    = "inline"
	RouterEvent     = "event"
)

// Dispatch routes ev and runs the matching handlers on the calling
// goroutine. Handler failures are logged and counted, never returned.
func (e *Engine) Dispatch(ctx context.Context, ev *models.Event) {
	if ev == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("panic while dispatching event",
				"event", ev.Kind,
				"panic", p,
				"stack", string(debug.Stack()))
			e.metrics.RecordDispatch(RouterEvent, observability.OutcomePanicked)
		}
	}()

	if ev.Message != nil {
		if id := e.botID(); id != "" && ev.Message.SenderID == id {
			e.metrics.RecordDispatch(RouterCommand, observability.OutcomeIgnored)
			return
		}
		if e.dedupe != nil && e.dedupe.Seen(cache.MessageKey(ev.Message.ChannelID, ev.Message.ID)) {
			e.logger.Debug("dropping redelivered message",
				"message_id", ev.Message.ID,
				"channel_id", ev.Message.ChannelID)
			e.metrics.RecordDispatch(RouterCommand, observability.OutcomeDuplicate)
			return
		}
		ev.Message.Normalize()
	}

	switch ev.Kind {
	case models.EventChannelMessage:
		if ev.Message != nil {
			e.dispatchCommand(ctx, ev)
		}
	case models.EventButtonClicked, models.EventDropdownSelected:
		if ev.Click != nil {
			e.dispatchComponent(ctx, ev)
		}
	}
	e.dispatchEvent(ctx, ev)
}

func (e *Engine) dispatchCommand(ctx context.Context, ev *models.Event) {
	msg := ev.Message
	route, ok := e.commands.Route(msg.Content.Text)
	if !ok {
		return
	}
	inv := e.bind(params.NewCommand(ev, route.Args))
	id := access.Identity{ClanID: msg.ClanID, ChannelID: msg.ChannelID, UserID: msg.SenderID}
	e.invoke(ctx, RouterCommand, route.Command.Declaration, inv, id, route.Args)
}

func (e *Engine) dispatchComponent(ctx context.Context, ev *models.Event) {
	click := ev.Click
	res := e.components.Route(ev.Kind, click, e.GlobalScope())
	if res.Inline {
		e.dispatchInline(ctx, ev)
		return
	}
	if len(res.Candidates) == 0 {
		e.metrics.RecordDispatch(RouterComponent, observability.OutcomeUnrouted)
		return
	}

	id := access.Identity{ClanID: click.ClanID, ChannelID: click.ChannelID, UserID: click.UserID}
	for _, c := range res.Candidates {
		inv := e.bind(params.NewComponent(ev, c.Match))
		e.invoke(ctx, RouterComponent, c.Component.Declaration, inv, id, c.Match.Positional)
	}
}

// dispatchInline runs an ad hoc click handler. Only the global scope
// applies, inline handlers carry no declaration.
func (e *Engine) dispatchInline(ctx context.Context, ev *models.Event) {
	click := ev.Click
	fn, ok := e.clicks.Handler(click.ButtonID)
	if !ok {
		// Unregistered between routing and lookup.
		e.metrics.RecordDispatch(RouterInline, observability.OutcomeUnrouted)
		return
	}
	id := access.Identity{ClanID: click.ClanID, ChannelID: click.ChannelID, UserID: click.UserID}
	if !e.GlobalScope().Allows(id) {
		e.metrics.RecordDispatch(RouterInline, observability.OutcomeOutOfScope)
		return
	}

	inv := e.bind(params.NewComponent(ev, routing.Match{}))
	name := "inline:" + click.ButtonID
	e.run(ctx, RouterInline, name, inv, func(ctx context.Context) error {
		return fn(ctx, inv.ClickContext(ctx))
	})
}

func (e *Engine) dispatchEvent(ctx context.Context, ev *models.Event) {
	e.mu.RLock()
	entries := e.events[ev.Kind]
	e.mu.RUnlock()

	id := access.Identity{ClanID: ev.ClanID, ChannelID: ev.ChannelID, UserID: ev.ActorID()}
	for _, en := range entries {
		if en.decl.Once && !en.fired.CompareAndSwap(false, true) {
			continue
		}
		inv := e.bind(params.NewEvent(ev))
		e.invoke(ctx, RouterEvent, en.decl.Declaration, inv, id, nil)
	}
}

func (e *Engine) bind(inv *params.Invocation) *params.Invocation {
	inv.Client = e.client
	inv.Utils = e.utils
	inv.Toolkit = e.toolkit
	inv.Logger = e.logger
	return inv
}

// invoke applies scope and guards, resolves parameters and calls the
// handler.
func (e *Engine) invoke(ctx context.Context, router string, decl handlers.Declaration, inv *params.Invocation, id access.Identity, args []string) {
	name := decl.Name()
	scope := access.Merge(e.GlobalScope(), decl.OwnerScope, decl.Scope)
	if !scope.Allows(id) {
		e.logger.Debug("handler out of scope",
			"router", router,
			"handler", name,
			"clan_id", id.ClanID,
			"channel_id", id.ChannelID,
			"user_id", id.UserID)
		e.metrics.RecordDispatch(router, observability.OutcomeOutOfScope)
		return
	}

	if len(decl.Guards) > 0 {
		in := &access.GuardInput{
			Handler:  name,
			Kind:     inv.Event.Kind,
			Event:    inv.Event,
			Identity: id,
			Args:     args,
		}
		if !e.guards.Run(ctx, decl.Guards, in) {
			e.metrics.RecordDispatch(router, observability.OutcomeRejected)
			return
		}
	}

	e.run(ctx, router, name, inv, func(ctx context.Context) error {
		return decl.Handler(ctx, params.Resolve(ctx, decl.Params, inv))
	})
}

func (e *Engine) run(ctx context.Context, router, name string, inv *params.Invocation, fn func(context.Context) error) {
	ctx = observability.WithEventID(ctx, inv.ID)
	ctx = observability.WithHandler(ctx, name)
	ctx = observability.WithIdentity(ctx, inv.ChannelID(), inv.UserID())
	ctx, span := e.tracer.TraceDispatch(ctx, router, name, inv.ID)
	defer span.End()

	start := time.Now()
	err := call(ctx, fn)
	e.metrics.ObserveHandler(router, name, time.Since(start))

	if err == nil {
		e.metrics.RecordDispatch(router, observability.OutcomeHandled)
		return
	}
	observability.RecordError(span, err)
	outcome := observability.OutcomeFailed
	if errors.Is(err, ErrHandlerPanic) {
		outcome = observability.OutcomePanicked
	}
	e.metrics.RecordDispatch(router, outcome)

	attrs := []any{
		"router", router,
		"handler", name,
		"event_id", inv.ID,
		"channel_id", inv.ChannelID(),
		"user_id", inv.UserID(),
		"error", err,
	}
	if inv.Message != nil {
		attrs = append(attrs, "message_id", inv.Message.ID)
	}
	if inv.Click != nil {
		attrs = append(attrs, "button_id", inv.Click.ButtonID, "message_id", inv.Click.MessageID)
	}
	e.logger.Error("handler failed", attrs...)
}

func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrHandlerPanic, p, debug.Stack())
		}
	}()
	return fn(ctx)
}
