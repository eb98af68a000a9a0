package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/botkit/pkg/models"
)

func TestPlatform_EventSubscriptions(t *testing.T) {
	p := New()
	ctx := context.Background()

	var got []string
	unsubscribe := p.OnEvent(models.EventChannelMessage, func(_ context.Context, ev *models.Event) {
		got = append(got, ev.Message.ID)
	})
	p.OnEvent(models.EventReady, func(context.Context, *models.Event) {
		got = append(got, "ready")
	})

	p.Emit(ctx, models.NewMessageEvent(&models.ChannelMessage{ID: "m1"}))
	unsubscribe()
	p.Emit(ctx, models.NewMessageEvent(&models.ChannelMessage{ID: "m2"}))

	if len(got) != 1 || got[0] != "m1" {
		t.Errorf("delivered = %v, want [m1]", got)
	}
	if p.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", p.Subscribers())
	}
}

func TestPlatform_ConnectFailures(t *testing.T) {
	p := New()
	ctx := context.Background()
	boom := errors.New("boom")
	p.FailConnect(boom, boom)

	for i := 0; i < 2; i++ {
		if err := p.Connect(ctx); !errors.Is(err, boom) {
			t.Fatalf("Connect() #%d error = %v", i, err)
		}
	}
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !p.Connected() || p.Calls("Connect") != 3 {
		t.Errorf("Connected() = %v, calls = %d", p.Connected(), p.Calls("Connect"))
	}

	var dropped error
	p.OnDisconnect(func(err error) { dropped = err })
	p.Drop(boom)
	if !errors.Is(dropped, boom) || p.Connected() {
		t.Errorf("Drop() dropped = %v, connected = %v", dropped, p.Connected())
	}
}

func TestPlatform_SendUpdateDelete(t *testing.T) {
	p := New()
	ctx := context.Background()

	receipt, err := p.Send(ctx, &models.OutboundMessage{ChannelID: "c1", Content: models.MessageContent{Text: "hi"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	stored, err := p.FetchMessage(ctx, "c1", receipt.MessageID)
	if err != nil || stored.Content.Text != "hi" {
		t.Fatalf("FetchMessage() = %+v, %v", stored, err)
	}

	if err := p.Update(ctx, receipt.MessageID, &models.OutboundMessage{ChannelID: "c1", Content: models.MessageContent{Text: "edited"}}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	stored, _ = p.FetchMessage(ctx, "c1", receipt.MessageID)
	if stored.Content.Text != "edited" {
		t.Errorf("stored text = %q after update", stored.Content.Text)
	}

	if err := p.React(ctx, "c1", receipt.MessageID, "👍"); err != nil {
		t.Fatal(err)
	}
	_ = p.React(ctx, "c1", receipt.MessageID, "🎉")
	_ = p.RemoveReaction(ctx, "c1", receipt.MessageID, "👍")
	if r := p.Reactions("c1", receipt.MessageID); len(r) != 1 || r[0] != "🎉" {
		t.Errorf("Reactions() = %v", r)
	}

	if err := p.Delete(ctx, "c1", receipt.MessageID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := p.Delete(ctx, "c1", receipt.MessageID); err == nil {
		t.Error("second Delete() should fail")
	}

	if _, err := p.Send(ctx, &models.OutboundMessage{}); err == nil {
		t.Error("Send() without channel should fail")
	}
}

func TestPlatform_CreateDM(t *testing.T) {
	p := New()
	p.AddUser(models.User{ID: "u1", Username: "alice"})
	ch, err := p.CreateDM(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CreateDM() error = %v", err)
	}
	if !ch.IsDM || ch.ID != "dm-u1" {
		t.Errorf("CreateDM() = %+v", ch)
	}
	if _, err := p.CreateDM(context.Background(), "ghost"); err == nil {
		t.Error("CreateDM() for unknown user should fail")
	}
}
