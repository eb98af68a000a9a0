package messaging

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/botkit/internal/backoff"
	"github.com/haasonsaas/botkit/internal/mentions"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/platform/memory"
	"github.com/haasonsaas/botkit/pkg/models"
)

func noopClick(context.Context, *ClickContext) error { return nil }

func newTestToolkit(t *testing.T) (*Toolkit, *memory.Platform) {
	t.Helper()
	mem := memory.New()
	mem.AddUser(models.User{ID: "u1", Username: "alice"})
	mem.AddChannel(models.Channel{ID: "c2", ClanID: "k2"})
	mem.SetRoles("k1", models.Role{ID: "r1", Title: "Mods"})
	utils := platform.NewUtils(mem, mem, nil, nil)
	tk := NewToolkit(mem, utils, mentions.NewRoleCache(mem, nil), NewClickRegistry(), nil)
	return tk, mem
}

func TestDraft_ButtonRows(t *testing.T) {
	d := Text("pick one")
	for i := 0; i < 7; i++ {
		d.AddButton(NewButton("b").ID("opt_" + string(rune('a'+i))))
	}
	p, err := d.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if len(p.Content.Components) != 2 {
		t.Fatalf("rows = %d, want 2", len(p.Content.Components))
	}
	if n := len(p.Content.Components[0].Components); n != models.MaxButtonsPerRow {
		t.Errorf("first row = %d buttons", n)
	}
	if n := len(p.Content.Components[1].Components); n != 2 {
		t.Errorf("second row = %d buttons, want 2", n)
	}
	if p.Inline != nil {
		t.Errorf("Inline = %v, want nil without handlers", p.Inline)
	}
}

func TestDraft_InlineButtons(t *testing.T) {
	d := Text("x").
		AddButton(NewButton("Generated").OnClick(noopClick)).
		AddButton(NewButton("Custom").ID("confirm").OnClick(noopClick)).
		AddButton(NewButton("Docs").URL("https://example.com"))
	p, err := d.Payload()
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	buttons := p.Content.Components[0].Components
	if !strings.HasPrefix(buttons[0].ID, ButtonIDPrefix) {
		t.Errorf("generated id = %q", buttons[0].ID)
	}
	if buttons[1].ID != "confirm" {
		t.Errorf("custom id = %q", buttons[1].ID)
	}
	if buttons[2].Style != models.ButtonLink || buttons[2].ID != "" {
		t.Errorf("link button = %+v", buttons[2])
	}
	if len(p.Inline) != 2 {
		t.Errorf("Inline = %d handlers, want 2", len(p.Inline))
	}
	if _, ok := p.Inline[buttons[0].ID]; !ok {
		t.Error("generated id not bound to its handler")
	}

	// Building twice keeps the generated id stable.
	again, _ := d.Payload()
	if again.Content.Components[0].Components[0].ID != buttons[0].ID {
		t.Error("generated id changed between builds")
	}
}

func TestDraft_Errors(t *testing.T) {
	_, err := Text("x").AddButton(NewButton("")).AddMention("", mentions.User("u1", "")).Payload()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, errButtonLabel) {
		t.Errorf("error = %v, want label error", err)
	}
	if !strings.Contains(err.Error(), "placeholder name") {
		t.Errorf("error = %v, want placeholder error", err)
	}
}

func TestDraft_Constructors(t *testing.T) {
	sys, _ := System("ok").Payload()
	if len(sys.Content.Markdown) != 1 || sys.Content.Markdown[0] != (models.MarkdownSpan{Type: models.MarkdownPre, S: 0, E: 2}) {
		t.Errorf("System markdown = %+v", sys.Content.Markdown)
	}

	img, _ := Image("https://x/cat.png", ImageOptions{Alt: "cat", Width: 10}).AddFile("https://x/a.pdf", "a.pdf", "application/pdf").Payload()
	if img.Content.Text != "cat" || len(img.Attachments) != 2 || img.Attachments[0].FileType != "image" {
		t.Errorf("Image payload = %+v", img)
	}

	emb, _ := Build().AddEmbed(models.Embed{Title: "t"}).Payload()
	if len(emb.Content.Embeds) != 1 || emb.Content.Embeds[0].Timestamp == nil {
		t.Errorf("embed = %+v", emb.Content.Embeds)
	}

	raw, _ := Raw(models.MessageContent{Text: "hi"}, models.Mention{UserID: "u1", S: 0, E: 2}).Payload()
	if len(raw.Marks) != 1 {
		t.Errorf("Raw marks = %+v", raw.Marks)
	}
}

func TestToolkit_SendResolvesMentionsAndRegistersClicks(t *testing.T) {
	tk, mem := newTestToolkit(t)
	ctx := context.Background()

	d := Text("hi {{who}}, ping {{mods}}").
		AddMention("who", mentions.User("u1", "")).
		AddMentionInput("mods", mentions.Input{RoleName: "mods"}).
		AddButton(NewButton("Go").OnClick(noopClick))

	sent, err := tk.Send(ctx, Target{ChannelID: "c1", ClanID: "k1"}, d)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if sent.ID() == "" || sent.ChannelID() != "c1" {
		t.Errorf("managed message = %+v", sent.Raw())
	}

	out := mem.Sent()[0]
	if out.Content.Text != "hi @alice, ping @Mods" {
		t.Errorf("text = %q", out.Content.Text)
	}
	if len(out.Mentions) != 2 || out.Mentions[1].RoleID != "r1" {
		t.Fatalf("mentions = %+v", out.Mentions)
	}
	for _, m := range out.Mentions {
		if !strings.HasPrefix(out.Content.Text[m.S:m.E], "@") {
			t.Errorf("mark %+v does not cover a mention", m)
		}
	}
	id := out.Content.Components[0].Components[0].ID
	if !tk.Clicks().Has(id) {
		t.Errorf("inline handler for %q not registered", id)
	}
}

func TestToolkit_SendRetriesTransientFailures(t *testing.T) {
	auth := platform.ErrAuthentication("bad token", nil)
	tests := []struct {
		name      string
		failures  []error
		wantErr   error
		wantCalls int
		wantDelay []time.Duration
	}{
		{
			name:      "recovers after transient failures",
			failures:  []error{platform.ErrRateLimit("slow down", nil), platform.ErrUnavailable("busy", nil)},
			wantCalls: 3,
			wantDelay: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:      "permanent failure is not retried",
			failures:  []error{auth},
			wantErr:   auth,
			wantCalls: 1,
		},
		{
			name: "retries exhausted",
			failures: []error{
				platform.ErrConnection("reset", nil), platform.ErrConnection("reset", nil),
				platform.ErrConnection("reset", nil), platform.ErrConnection("reset", nil),
			},
			wantErr:   backoff.ErrMaxAttemptsExhausted,
			wantCalls: 4,
			wantDelay: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, mem := newTestToolkit(t)
			var delays []time.Duration
			tk.SetSendRetry(backoff.Loop{
				Policy:     backoff.DefaultPolicy(),
				MaxRetries: 3,
				Rand:       func() float64 { return 0 },
				Sleep: func(_ context.Context, d time.Duration) error {
					delays = append(delays, d)
					return nil
				},
			})
			mem.FailSend(tt.failures...)

			d := Text("hi").AddButton(NewButton("Go").ID("go").OnClick(noopClick))
			_, err := tk.Send(context.Background(), Target{ChannelID: "c1"}, d)
			switch {
			case tt.wantErr == nil && err != nil:
				t.Fatalf("Send() error = %v", err)
			case tt.wantErr != nil && !errors.Is(err, tt.wantErr):
				t.Fatalf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if got := mem.Calls("Send"); got != tt.wantCalls {
				t.Errorf("Send calls = %d, want %d", got, tt.wantCalls)
			}
			if !reflect.DeepEqual(delays, tt.wantDelay) {
				t.Errorf("delays = %v, want %v", delays, tt.wantDelay)
			}
			if registered := tk.Clicks().Has("go"); registered != (tt.wantErr == nil) {
				t.Errorf("handler registered = %v after send error %v", registered, err)
			}
		})
	}
}

func TestManagedMessage_UpdateRegistersClicks(t *testing.T) {
	tk, _ := newTestToolkit(t)
	d := Text("x").AddButton(NewButton("Go").ID("go").OnClick(noopClick))

	unsent := tk.Message(&models.ChannelMessage{ChannelID: "c1"})
	if err := unsent.Update(context.Background(), d); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("Update() error = %v, want ErrNoMessage", err)
	}
	if tk.Clicks().Len() != 0 {
		t.Fatalf("clicks = %d after failed update", tk.Clicks().Len())
	}

	msg := tk.Message(&models.ChannelMessage{ID: "m1", ChannelID: "c1"})
	if err := msg.Update(context.Background(), d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !tk.Clicks().Has("go") {
		t.Error("handler not registered after update")
	}
}

func TestToolkit_SendWithoutChannel(t *testing.T) {
	tk, _ := newTestToolkit(t)
	if _, err := tk.Send(context.Background(), Target{}, Text("x")); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Send() error = %v, want ErrNoChannel", err)
	}
}

func TestManagedMessage(t *testing.T) {
	tk, mem := newTestToolkit(t)
	ctx := context.Background()
	inbound := &models.ChannelMessage{ID: "m1", ChannelID: "c1", ClanID: "k1", SenderID: "u1", Username: "alice", Content: models.MessageContent{Text: "*ping"}}
	mem.AddMessage(*inbound)
	auto := tk.Auto(inbound)

	reply, err := auto.Message.Reply(ctx, Text("pong"))
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	out := mem.Sent()[0]
	if len(out.References) != 1 || out.References[0].MessageID != "m1" || out.References[0].Content != "*ping" {
		t.Errorf("references = %+v", out.References)
	}

	if err := reply.Update(ctx, Text("pong!")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd, ok := mem.Updated(reply.ID()); !ok || upd.Content.Text != "pong!" {
		t.Errorf("update = %+v", upd)
	}
	if got := reply.Fetch(ctx); got == nil || got.Content.Text != "pong!" {
		t.Errorf("Fetch() = %+v", got)
	}

	if err := auto.Message.AddReaction(ctx, "👍"); err != nil {
		t.Fatal(err)
	}
	if err := auto.Message.RemoveReaction(ctx, "👍"); err != nil {
		t.Fatal(err)
	}
	if mem.Calls("React") != 1 || mem.Calls("RemoveReaction") != 1 {
		t.Errorf("react calls = %d/%d", mem.Calls("React"), mem.Calls("RemoveReaction"))
	}

	dm, err := auto.Message.SendDM(ctx, Text("psst"))
	if err != nil {
		t.Fatalf("SendDM() error = %v", err)
	}
	if dm.ChannelID() != "dm-u1" {
		t.Errorf("DM channel = %q", dm.ChannelID())
	}

	if err := reply.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	orphan := tk.Message(nil)
	if err := orphan.Delete(ctx); !errors.Is(err, ErrNoMessage) {
		t.Errorf("Delete() on orphan = %v", err)
	}
	if _, err := orphan.SendDM(ctx, Text("x")); !errors.Is(err, ErrNoSender) {
		t.Errorf("SendDM() on orphan = %v", err)
	}
}

func TestChannelHelper(t *testing.T) {
	tk, mem := newTestToolkit(t)
	ctx := context.Background()
	here := tk.Channel("c1", "k1")

	other := here.Find(ctx, "c2")
	if other.ID() != "c2" || other.clanID != "k2" {
		t.Errorf("Find() = %+v", other)
	}
	if _, err := other.Send(ctx, Text("hello")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := mem.Sent()[0]; got.ChannelID != "c2" || got.ClanID != "k2" {
		t.Errorf("sent = %+v", got)
	}
	if unknown := here.Find(ctx, "ghost"); unknown.clanID != "k1" {
		t.Errorf("unknown channel clan = %q, want k1", unknown.clanID)
	}
}

func TestClickRegistry(t *testing.T) {
	r := NewClickRegistry()
	r.Register("a", noopClick)
	r.Register("", noopClick)
	r.Register("b", nil)
	if !r.Has("a") || r.Has("b") || r.Len() != 1 {
		t.Fatalf("registry state: has(a)=%v has(b)=%v len=%d", r.Has("a"), r.Has("b"), r.Len())
	}
	r.Unregister("a")
	if r.Has("a") {
		t.Error("Unregister() did not remove handler")
	}
	r.Register("c", noopClick)
	r.Clear()
	if r.Len() != 0 {
		t.Error("Clear() left handlers")
	}
}
