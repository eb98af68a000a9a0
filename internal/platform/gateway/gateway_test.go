package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/retry"
	"github.com/haasonsaas/botkit/pkg/models"
)

type serverFrame struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type methodHandler func(params json.RawMessage) (any, *frameError)

// fakeGateway is a minimal gateway server for exercising the client.
type fakeGateway struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader
	handlers map[string]methodHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	methods []string
	ready   chan struct{}
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		t:        t,
		handlers: make(map[string]methodHandler),
		ready:    make(chan struct{}, 4),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer good-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	for {
		var f serverFrame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		g.mu.Lock()
		g.methods = append(g.methods, f.Method)
		g.mu.Unlock()

		if f.Method == methodConnect {
			g.respond(f.ID, helloPayload{Protocol: protocolVersion, BotID: "bot-1"}, nil)
			g.ready <- struct{}{}
			continue
		}
		handler, ok := g.handlers[f.Method]
		if !ok {
			g.respond(f.ID, nil, &frameError{Code: "unsupported", Message: "unknown method " + f.Method})
			continue
		}
		payload, ferr := handler(f.Params)
		g.respond(f.ID, payload, ferr)
	}
}

func (g *fakeGateway) write(v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.conn.WriteJSON(v); err != nil {
		g.t.Errorf("server write: %v", err)
	}
}

func (g *fakeGateway) respond(id string, payload any, ferr *frameError) {
	ok := ferr == nil
	out := map[string]any{"type": frameResponse, "id": id, "ok": ok}
	if payload != nil {
		out["payload"] = payload
	}
	if ferr != nil {
		out["error"] = ferr
	}
	g.write(out)
}

func (g *fakeGateway) push(event string, payload any) {
	g.write(map[string]any{"type": frameEvent, "event": event, "payload": payload})
}

func (g *fakeGateway) drop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.conn.Close()
}

func (g *fakeGateway) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.methods...)
}

func connectClient(t *testing.T, g *fakeGateway) *Client {
	t.Helper()
	c, err := New(Config{URL: g.url(), Token: "good-token", RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-g.ready
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing url", Config{Token: "t"}},
		{"missing token", Config{URL: "ws://x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); platform.CodeOf(err) != platform.ErrCodeInvalidInput {
				t.Errorf("New() error = %v", err)
			}
		})
	}
}

func TestConnect_Handshake(t *testing.T) {
	g := newFakeGateway(t)
	c := connectClient(t, g)
	if c.BotID() != "bot-1" {
		t.Errorf("BotID() = %q", c.BotID())
	}
	// Connect on a live socket is a no-op.
	if err := c.Connect(context.Background()); err != nil {
		t.Errorf("second Connect() error = %v", err)
	}
	if got := g.calls(); len(got) != 1 || got[0] != methodConnect {
		t.Errorf("server saw %v", got)
	}
}

func TestConnect_RejectedCredentialsArePermanent(t *testing.T) {
	g := newFakeGateway(t)
	c, err := New(Config{URL: g.url(), Token: "bad-token"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = c.Connect(context.Background())
	if !retry.IsPermanent(err) {
		t.Errorf("Connect() error = %v, want permanent", err)
	}
	if platform.CodeOf(err) != platform.ErrCodeAuthentication {
		t.Errorf("CodeOf() = %s", platform.CodeOf(err))
	}
}

func TestConnect_Unreachable(t *testing.T) {
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws", Token: "t"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = c.Connect(context.Background())
	if platform.CodeOf(err) != platform.ErrCodeConnection || retry.IsPermanent(err) {
		t.Errorf("Connect() error = %v, want retryable connection error", err)
	}
}

func TestRequests(t *testing.T) {
	g := newFakeGateway(t)
	g.handlers[methodUserGet] = func(params json.RawMessage) (any, *frameError) {
		var p idParams
		_ = json.Unmarshal(params, &p)
		if p.ID != "u1" {
			return nil, &frameError{Code: "not_found", Message: "no such user"}
		}
		return models.User{ID: "u1", Username: "alice"}, nil
	}
	var sent models.OutboundMessage
	g.handlers[methodMessageSend] = func(params json.RawMessage) (any, *frameError) {
		_ = json.Unmarshal(params, &sent)
		return models.Receipt{MessageID: "m9"}, nil
	}
	g.handlers[methodRolesList] = func(json.RawMessage) (any, *frameError) {
		return []models.Role{{ID: "r1", Title: "Mods"}}, nil
	}
	g.handlers[methodTokenSend] = func(json.RawMessage) (any, *frameError) { return nil, nil }
	c := connectClient(t, g)
	ctx := context.Background()

	u, err := c.FetchUser(ctx, "u1")
	if err != nil || u.Username != "alice" {
		t.Fatalf("FetchUser() = %+v, %v", u, err)
	}
	if _, err := c.FetchUser(ctx, "u2"); platform.CodeOf(err) != platform.ErrCodeNotFound {
		t.Errorf("FetchUser(missing) error = %v", err)
	}

	receipt, err := c.Send(ctx, &models.OutboundMessage{ChannelID: "c1", Content: models.MessageContent{Text: "hi"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if receipt.MessageID != "m9" || receipt.ChannelID != "c1" {
		t.Errorf("receipt = %+v", receipt)
	}
	if sent.Content.Text != "hi" {
		t.Errorf("server received %+v", sent)
	}

	roles, err := c.ListRoles(ctx, "k1")
	if err != nil || len(roles) != 1 || roles[0].Name() != "Mods" {
		t.Errorf("ListRoles() = %+v, %v", roles, err)
	}
	if err := c.SendToken(ctx, "u1", 5, "thanks"); err != nil {
		t.Errorf("SendToken() error = %v", err)
	}
	if err := c.SendToken(ctx, "u1", 0, ""); platform.CodeOf(err) != platform.ErrCodeInvalidInput {
		t.Errorf("SendToken(0) error = %v", err)
	}
	if err := c.Delete(ctx, "c1", "m1"); platform.CodeOf(err) != platform.ErrCodeUnsupported {
		t.Errorf("Delete() error = %v, want unsupported", err)
	}
}

func TestEvents(t *testing.T) {
	g := newFakeGateway(t)
	c := connectClient(t, g)

	got := make(chan *models.Event, 2)
	c.OnEvent(models.EventChannelMessage, func(_ context.Context, ev *models.Event) { got <- ev })
	c.OnEvent(models.EventButtonClicked, func(_ context.Context, ev *models.Event) { got <- ev })

	g.push(string(models.EventChannelMessage), map[string]any{
		"message": map[string]any{
			"message_id": "m1",
			"channel_id": "c1",
			"clan_id":    "k1",
			"sender_id":  "u1",
			"content":    map[string]any{"t": "*ping"},
		},
	})
	g.push(string(models.EventButtonClicked), map[string]any{
		"click": map[string]any{"button_id": "ok", "message_id": "m1", "channel_id": "c1", "user_id": "u2"},
	})

	for i := 0; i < 2; i++ {
		select {
		case ev := <-got:
			switch ev.Kind {
			case models.EventChannelMessage:
				if ev.ChannelID != "c1" || ev.SenderID != "u1" || ev.Message.Content.Text != "*ping" {
					t.Errorf("message event = %+v", ev)
				}
			case models.EventButtonClicked:
				if ev.UserID != "u2" || ev.Click.ButtonID != "ok" {
					t.Errorf("click event = %+v", ev)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestConnectionLost(t *testing.T) {
	g := newFakeGateway(t)
	c := connectClient(t, g)

	dropped := make(chan error, 1)
	c.OnDisconnect(func(err error) { dropped <- err })
	g.drop()

	select {
	case err := <-dropped:
		if platform.CodeOf(err) != platform.ErrCodeConnection {
			t.Errorf("disconnect error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	if _, err := c.FetchUser(context.Background(), "u1"); platform.CodeOf(err) != platform.ErrCodeUnavailable {
		t.Errorf("FetchUser() after drop error = %v", err)
	}

	// The session manager reconnects by calling Connect again.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	<-g.ready
}

func TestClose(t *testing.T) {
	g := newFakeGateway(t)
	c := connectClient(t, g)
	var dropped bool
	c.OnDisconnect(func(error) { dropped = true })

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if dropped {
		t.Error("Close reported a disconnect")
	}
	err := c.React(context.Background(), "c1", "m1", "👍")
	if platform.CodeOf(err) != platform.ErrCodeUnavailable {
		t.Errorf("React() after Close error = %v", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   frame
		want    models.EventKind
		wantErr bool
	}{
		{name: "no name", frame: frame{Type: frameEvent}, wantErr: true},
		{name: "bad payload", frame: frame{Type: frameEvent, Event: "x", Payload: json.RawMessage(`[1]`)}, wantErr: true},
		{name: "empty payload", frame: frame{Type: frameEvent, Event: "ready"}, want: models.EventReady},
		{
			name:  "data event",
			frame: frame{Type: frameEvent, Event: "add_clan_user", Payload: json.RawMessage(`{"clan_id":"k1","user_id":"u1"}`)},
			want:  models.EventAddClanUser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeEvent(&tt.frame)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && ev.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", ev.Kind, tt.want)
			}
		})
	}
}
