package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/botkit/internal/config"
	"github.com/haasonsaas/botkit/internal/dispatch"
	"github.com/haasonsaas/botkit/internal/platform/memory"
	"github.com/haasonsaas/botkit/pkg/models"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"serve", "routes", "config"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, _, err := execute(t, "routes", "--prefix", "!")
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	for _, want := range []string{
		"!mention-demo",
		"Greeter.command:ping",
		"/vote/:poll/:option",
		"form_submit",
		"add_clan_user",
		"Lifecycle.once:ready",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("routes output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("version: 1\nbot:\n  platform: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("bot:\n  platform: carrier-pigeon\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "config", "validate", "--config", good)
	if err != nil {
		t.Fatalf("validate good config: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("output = %q", out)
	}

	_, stderr, err := execute(t, "config", "validate", "--config", bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(stderr, "carrier-pigeon") {
		t.Fatalf("stderr = %q, want the offending platform", stderr)
	}
}

func TestNewClient(t *testing.T) {
	cfg := config.Default()
	client, err := newClient(cfg, slog.Default())
	if err != nil {
		t.Fatalf("newClient(memory): %v", err)
	}
	if _, ok := client.(*memory.Platform); !ok {
		t.Fatalf("client = %T", client)
	}

	cfg.Bot.Platform = "irc"
	if _, err := newClient(cfg, slog.Default()); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

type demoBot struct {
	platform *memory.Platform
	engine   *dispatch.Engine
}

func newDemoBot(t *testing.T) *demoBot {
	t.Helper()
	p := memory.New()
	p.AddUser(models.User{ID: "1", Username: "alice"})
	p.AddUser(models.User{ID: "42", Username: "bob"})
	p.AddChannel(models.Channel{ID: "c1", ClanID: "k1"})
	p.SetRoles("k1", models.Role{ID: "r1", Title: "mods"})

	guards, err := newGuards(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	e, err := dispatch.New(dispatch.Options{Logger: slog.New(slog.DiscardHandler)},
		dispatch.Deps{Client: p, Guards: guards})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Load(demoHandlers("*")); err != nil {
		t.Fatal(err)
	}
	return &demoBot{platform: p, engine: e}
}

func (b *demoBot) say(text string, marks ...models.Mention) {
	b.engine.Dispatch(context.Background(), models.NewMessageEvent(&models.ChannelMessage{
		ID:        "m-" + text,
		ChannelID: "c1",
		ClanID:    "k1",
		SenderID:  "1",
		Content:   models.MessageContent{Text: text},
		Mentions:  marks,
	}))
}

func (b *demoBot) click(buttonID, extra string) {
	b.engine.Dispatch(context.Background(), models.NewClickEvent(&models.ButtonClicked{
		ButtonID:  buttonID,
		MessageID: "m-btn",
		ChannelID: "c1",
		ClanID:    "k1",
		UserID:    "42",
		ExtraData: extra,
	}))
}

func (b *demoBot) last(t *testing.T) models.OutboundMessage {
	t.Helper()
	sent := b.platform.Sent()
	if len(sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return sent[len(sent)-1]
}

func TestDemo_MentionDemo(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*mention-demo", models.Mention{UserID: "42"})

	out := bot.last(t)
	if want := "Bot gửi lời chào tới @bob 👋"; out.Content.Text != want {
		t.Fatalf("text = %q, want %q", out.Content.Text, want)
	}
	if len(out.Mentions) != 1 {
		t.Fatalf("mentions = %+v", out.Mentions)
	}
	m := out.Mentions[0]
	if got := out.Content.Text[m.S:m.E]; got != "@bob" {
		t.Fatalf("mark covers %q", got)
	}
}

func TestDemo_MentionDemoDefaultsToSender(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*mention-demo")
	if out := bot.last(t); !strings.Contains(out.Content.Text, "@alice") {
		t.Fatalf("text = %q", out.Content.Text)
	}
}

func TestDemo_PollAndVote(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*poll lunch pizza sushi")

	poll := bot.last(t)
	if len(poll.Content.Components) != 1 || len(poll.Content.Components[0].Components) != 2 {
		t.Fatalf("components = %+v", poll.Content.Components)
	}
	id := poll.Content.Components[0].Components[1].ID
	if id != "/vote/lunch/sushi" {
		t.Fatalf("button id = %q", id)
	}

	bot.click(id, "")
	if got := bot.last(t).Content.Text; got != "@bob voted sushi in lunch" {
		t.Fatalf("vote reply = %q", got)
	}
}

func TestDemo_ConfirmInlineButton(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*confirm")

	prompt := bot.last(t)
	yes := prompt.Content.Components[0].Components[0].ID
	bot.click(yes, "")
	if got := bot.last(t).Content.Text; got != "Confirmed by @bob" {
		t.Fatalf("reply = %q", got)
	}
}

func TestDemo_FormSubmit(t *testing.T) {
	bot := newDemoBot(t)
	bot.click("form_submit", `{"name": "bob", "age": 42}`)
	if got := bot.last(t).Content.Text; got != "Received:\nage: 42\nname: bob" {
		t.Fatalf("reply = %q", got)
	}
}

func TestDemo_Echo(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*echo xin   chào")
	if got := bot.last(t).Content.Text; got != "xin chào" {
		t.Fatalf("reply = %q", got)
	}
}

func TestDemo_MentionRole(t *testing.T) {
	bot := newDemoBot(t)
	bot.say("*mention-role mods")
	out := bot.last(t)
	if len(out.Mentions) != 1 || out.Mentions[0].RoleID != "r1" {
		t.Fatalf("mentions = %+v", out.Mentions)
	}
	if !strings.Contains(out.Content.Text, "mods") {
		t.Fatalf("text = %q", out.Content.Text)
	}
}
