package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/haasonsaas/botkit/internal/access"
	"github.com/haasonsaas/botkit/internal/handlers"
	"github.com/haasonsaas/botkit/internal/mentions"
	"github.com/haasonsaas/botkit/internal/messaging"
	"github.com/haasonsaas/botkit/pkg/models"
)

var errNoMessage = errors.New("no message to reply to")

// arg returns args[i] as T.
func arg[T any](args []any, i int) (T, bool) {
	var zero T
	if i >= len(args) || args[i] == nil {
		return zero, false
	}
	v, ok := args[i].(T)
	return v, ok
}

func replyTo(ctx context.Context, args []any, d *messaging.Draft) error {
	msg, ok := arg[*messaging.ManagedMessage](args, 0)
	if !ok {
		return errNoMessage
	}
	_, err := msg.Reply(ctx, d)
	return err
}

// demoHandlers declares the handlers botkit serve ships with.
func demoHandlers(prefix string) *handlers.Set {
	b := handlers.NewBuilder()
	at := handlers.WithPrefix(prefix)
	message := handlers.AutoContext("message")

	b.Group("Greeter").
		Command("ping", func(ctx context.Context, args []any) error {
			return replyTo(ctx, args, messaging.Text("pong"))
		}, at, handlers.WithParams(message)).
		Command("echo", func(ctx context.Context, args []any) error {
			words, _ := arg[[]string](args, 1)
			if len(words) == 0 {
				return replyTo(ctx, args, messaging.Text("usage: "+prefix+"echo <text>"))
			}
			return replyTo(ctx, args, messaging.Text(strings.Join(words, " ")))
		}, at, handlers.WithParams(message, handlers.Args()),
			handlers.WithGuards(access.Registered(rateLimitGuard))).
		Command("mention-demo", mentionDemo, at,
			handlers.WithParams(message, handlers.Mentions(0), handlers.RawMessage("sender_id"))).
		Command("multi-mention", multiMention, at,
			handlers.WithParams(message, handlers.Mentions(), handlers.RawMessage("sender_id"))).
		Command("mention-role", mentionRole, at,
			handlers.WithParams(message, handlers.Arg(0)))

	b.Group("Polls").
		Command("poll", startPoll, at,
			handlers.WithParams(message, handlers.Arg(0), handlers.Args())).
		Command("confirm", confirm, at, handlers.WithParams(message)).
		Component(vote, handlers.WithPattern("/vote/:poll/:option"),
			handlers.WithParams(message, handlers.ComponentParam("poll"), handlers.ComponentParam("option")))

	b.Group("Forms").
		Component(submitForm, handlers.WithID("form_submit"),
			handlers.WithParams(message, handlers.FormData()))

	b.Group("Lifecycle").
		On(models.EventAddClanUser, welcome,
			handlers.WithParams(handlers.AutoContext("dm"), handlers.EventPayload("user_id"))).
		Once(models.EventReady, func(context.Context, []any) error {
			slog.Info("bot ready")
			return nil
		})

	return b.MustBuild()
}

// mentionDemo greets the first mentioned user, or the sender.
func mentionDemo(ctx context.Context, args []any) error {
	target, _ := arg[string](args, 2)
	if m, ok := arg[models.Mention](args, 1); ok && m.UserID != "" {
		target = m.UserID
	}
	d := messaging.Text("Bot gửi lời chào tới {{user}} 👋").
		AddMention("user", mentions.User(target, ""))
	return replyTo(ctx, args, d)
}

func multiMention(ctx context.Context, args []any) error {
	marks, _ := arg[[]models.Mention](args, 1)
	sender, _ := arg[string](args, 2)

	placeholders := map[string]mentions.Placeholder{"sender": mentions.User(sender, "")}
	var names []string
	for i, m := range marks {
		if m.IsRole() {
			continue
		}
		name := fmt.Sprintf("u%d", i)
		placeholders[name] = mentions.User(m.UserID, m.Username)
		names = append(names, "{{"+name+"}}")
	}
	if len(names) == 0 {
		return replyTo(ctx, args, messaging.Text("{{sender}}, mention someone first").AddMentions(placeholders))
	}
	text := "{{sender}} chào " + strings.Join(names, ", ")
	return replyTo(ctx, args, messaging.Text(text).AddMentions(placeholders))
}

func mentionRole(ctx context.Context, args []any) error {
	role, ok := arg[string](args, 1)
	if !ok {
		return replyTo(ctx, args, messaging.Text("usage: mention-role <role>"))
	}
	d := messaging.Text("Calling {{role}}").AddMention("role", mentions.Role("", role))
	return replyTo(ctx, args, d)
}

func startPoll(ctx context.Context, args []any) error {
	poll, ok := arg[string](args, 1)
	words, _ := arg[[]string](args, 2)
	if !ok || len(words) < 3 {
		return replyTo(ctx, args, messaging.Text("usage: poll <name> <option> <option>..."))
	}
	d := messaging.Text("Poll: " + poll)
	for _, option := range words[1:] {
		d.AddButton(messaging.NewButton(option).ID("/vote/" + poll + "/" + option))
	}
	return replyTo(ctx, args, d)
}

func vote(ctx context.Context, args []any) error {
	msg, ok := arg[*messaging.ManagedMessage](args, 0)
	if !ok {
		return errNoMessage
	}
	poll, _ := arg[string](args, 1)
	option, _ := arg[string](args, 2)
	d := messaging.Text(fmt.Sprintf("{{voter}} voted %s in %s", option, poll)).
		AddMention("voter", mentions.User(msg.SenderID(), ""))
	_, err := msg.Reply(ctx, d)
	return err
}

func confirm(ctx context.Context, args []any) error {
	d := messaging.Text("Are you sure?").
		AddButton(messaging.NewButton("Yes").Style(models.ButtonSuccess).OnClick(
			func(ctx context.Context, c *messaging.ClickContext) error {
				if c.Message == nil {
					return errNoMessage
				}
				_, err := c.Message.Reply(ctx, messaging.Text("Confirmed by {{user}}").
					AddMention("user", mentions.User(c.Message.SenderID(), "")))
				return err
			})).
		AddButton(messaging.NewButton("No").Style(models.ButtonDanger).OnClick(
			func(ctx context.Context, c *messaging.ClickContext) error {
				if c.Message == nil {
					return errNoMessage
				}
				_, err := c.Message.Reply(ctx, messaging.Text("Cancelled"))
				return err
			}))
	return replyTo(ctx, args, d)
}

func submitForm(ctx context.Context, args []any) error {
	form, _ := arg[map[string]string](args, 1)
	if len(form) == 0 {
		return replyTo(ctx, args, messaging.Text("Empty form"))
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	b.WriteString("Received:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, form[k])
	}
	return replyTo(ctx, args, messaging.Text(b.String()))
}

func welcome(ctx context.Context, args []any) error {
	dm, ok := arg[*messaging.DMHelper](args, 0)
	userID, _ := arg[string](args, 1)
	if !ok || userID == "" {
		return nil
	}
	_, err := dm.Send(ctx, userID, messaging.Text("Welcome, {{user}}!").
		AddMention("user", mentions.User(userID, "")))
	return err
}
