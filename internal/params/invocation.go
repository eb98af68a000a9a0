// Package params turns a handler's parameter requests into positional
// arguments for one invocation.
package params

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/haasonsaas/botkit/internal/messaging"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/routing"
	"github.com/haasonsaas/botkit/pkg/models"
)

// Kind identifies what triggered an invocation.
type Kind string

const (
	KindCommand   Kind = "command"
	KindComponent Kind = "component"
	KindEvent     Kind = "event"
)

// lazy holds one memoised lookup.
type lazy[T any] struct {
	done  bool
	value T
}

func (l *lazy[T]) get(load func() T) T {
	if !l.done {
		l.value = load()
		l.done = true
	}
	return l.value
}

// Invocation is everything known about one handler call. It is owned by a
// single dispatch goroutine and must not be shared.
type Invocation struct {
	ID   string
	Kind Kind

	// Event is the inbound event for every kind.
	Event *models.Event
	// Message is set for commands and message events.
	Message *models.ChannelMessage
	// Click is set for components.
	Click *models.ButtonClicked

	// Args are the command arguments after the command name.
	Args []string
	// Match holds component route captures.
	Match routing.Match

	Client  platform.Client
	Utils   *platform.Utils
	Toolkit *messaging.Toolkit
	Logger  *slog.Logger

	channel lazy[*models.Channel]
	clan    lazy[*models.Clan]
	user    lazy[*models.User]
	entity  lazy[*models.ChannelMessage]
	auto    lazy[*messaging.AutoContext]
	form    lazy[map[string]string]
}

// NewCommand creates an invocation for a routed command.
func NewCommand(ev *models.Event, args []string) *Invocation {
	return &Invocation{ID: uuid.NewString(), Kind: KindCommand, Event: ev, Message: ev.Message, Args: args}
}

// NewComponent creates an invocation for a component click.
func NewComponent(ev *models.Event, match routing.Match) *Invocation {
	return &Invocation{ID: uuid.NewString(), Kind: KindComponent, Event: ev, Click: ev.Click, Match: match}
}

// NewEvent creates an invocation for a lifecycle or generic event.
func NewEvent(ev *models.Event) *Invocation {
	return &Invocation{ID: uuid.NewString(), Kind: KindEvent, Event: ev, Message: ev.Message}
}

// ChannelID returns the channel the invocation happened in.
func (inv *Invocation) ChannelID() string {
	switch {
	case inv.Click != nil:
		return inv.Click.ChannelID
	case inv.Message != nil:
		return inv.Message.ChannelID
	case inv.Event != nil:
		return inv.Event.ChannelID
	}
	return ""
}

// ClanID returns the clan the invocation happened in.
func (inv *Invocation) ClanID() string {
	switch {
	case inv.Click != nil && inv.Click.ClanID != "":
		return inv.Click.ClanID
	case inv.Message != nil && inv.Message.ClanID != "":
		return inv.Message.ClanID
	case inv.Event != nil:
		return inv.Event.ClanID
	}
	return ""
}

// UserID returns the acting user.
func (inv *Invocation) UserID() string {
	switch {
	case inv.Click != nil:
		return inv.Click.UserID
	case inv.Message != nil:
		return inv.Message.SenderID
	case inv.Event != nil:
		return inv.Event.ActorID()
	}
	return ""
}

// Raw returns the payload that triggered the invocation.
func (inv *Invocation) Raw() models.FieldSelector {
	switch inv.Kind {
	case KindComponent:
		if inv.Click != nil {
			return inv.Click
		}
	case KindCommand:
		if inv.Message != nil {
			return inv.Message
		}
	}
	if inv.Event != nil {
		return inv.Event
	}
	return nil
}

// Channel fetches the invocation channel once.
func (inv *Invocation) Channel(ctx context.Context) *models.Channel {
	return inv.channel.get(func() *models.Channel {
		if inv.Utils == nil {
			return nil
		}
		return inv.Utils.Channel(ctx, inv.ChannelID())
	})
}

// Clan fetches the invocation clan once, via the channel when the payload
// carries no clan id.
func (inv *Invocation) Clan(ctx context.Context) *models.Clan {
	return inv.clan.get(func() *models.Clan {
		if inv.Utils == nil {
			return nil
		}
		clanID := inv.ClanID()
		if clanID == "" {
			if ch := inv.Channel(ctx); ch != nil {
				clanID = ch.ClanID
			}
		}
		return inv.Utils.Clan(ctx, clanID)
	})
}

// User fetches the acting user once.
func (inv *Invocation) User(ctx context.Context) *models.User {
	return inv.user.get(func() *models.User {
		if inv.Utils == nil {
			return nil
		}
		return inv.Utils.User(ctx, inv.UserID())
	})
}

// MessageEntity fetches the message once: the command message for
// commands, the clicked message for components.
func (inv *Invocation) MessageEntity(ctx context.Context) *models.ChannelMessage {
	return inv.entity.get(func() *models.ChannelMessage {
		if inv.Utils == nil {
			return nil
		}
		switch {
		case inv.Click != nil:
			return inv.Utils.Message(ctx, inv.Click.ChannelID, inv.Click.MessageID)
		case inv.Message != nil:
			return inv.Utils.Message(ctx, inv.Message.ChannelID, inv.Message.ID)
		}
		return nil
	})
}

// Auto builds the helper bundle once. For components the managed message
// is the clicked message and its sender is the clicking user, so replies
// and DMs reach whoever pressed the button.
func (inv *Invocation) Auto(ctx context.Context) *messaging.AutoContext {
	return inv.auto.get(func() *messaging.AutoContext {
		if inv.Toolkit == nil {
			return nil
		}
		if inv.Click != nil {
			msg := models.ChannelMessage{
				ID:        inv.Click.MessageID,
				ChannelID: inv.Click.ChannelID,
				ClanID:    inv.Click.ClanID,
			}
			if fetched := inv.MessageEntity(ctx); fetched != nil {
				msg = *fetched
			}
			msg.SenderID = inv.Click.UserID
			if u := inv.User(ctx); u != nil {
				msg.Username = u.Username
				msg.DisplayName = u.DisplayName
			}
			return inv.Toolkit.Auto(&msg)
		}
		if inv.Message != nil {
			return inv.Toolkit.Auto(inv.Message)
		}
		return inv.Toolkit.Auto(&models.ChannelMessage{ChannelID: inv.ChannelID(), ClanID: inv.ClanID(), SenderID: inv.UserID()})
	})
}

// FormData parses the click's extra data once.
func (inv *Invocation) FormData() map[string]string {
	return inv.form.get(func() map[string]string {
		if inv.Click == nil {
			return nil
		}
		form, err := ParseFormData(inv.Click.ExtraData)
		if err != nil {
			inv.logger().Warn("failed to parse form data",
				"button_id", inv.Click.ButtonID,
				"error", err,
			)
		}
		return form
	})
}

// ClickContext assembles the argument for inline click handlers.
func (inv *Invocation) ClickContext(ctx context.Context) *messaging.ClickContext {
	cc := &messaging.ClickContext{
		Click:    inv.Click,
		Channel:  inv.Channel(ctx),
		Clan:     inv.Clan(ctx),
		User:     inv.User(ctx),
		FormData: inv.FormData(),
	}
	if auto := inv.Auto(ctx); auto != nil {
		cc.Message = auto.Message
	}
	return cc
}
