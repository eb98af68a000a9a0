package models

import "testing"

func TestChannelMessageNormalize(t *testing.T) {
	msg := &ChannelMessage{ID: "m1"}
	msg.Normalize()

	if msg.Mentions == nil || msg.Attachments == nil || msg.References == nil {
		t.Fatalf("Normalize() left nil slices: %+v", msg)
	}
	if len(msg.Mentions) != 0 {
		t.Errorf("len(Mentions) = %d, want 0", len(msg.Mentions))
	}
}

func TestChannelMessageField(t *testing.T) {
	msg := &ChannelMessage{
		ID:        "m1",
		ChannelID: "c1",
		SenderID:  "u1",
		Content:   MessageContent{Text: "*ping"},
	}

	tests := []struct {
		name   string
		field  string
		want   any
		wantOK bool
	}{
		{name: "message id", field: "message_id", want: "m1", wantOK: true},
		{name: "id alias", field: "id", want: "m1", wantOK: true},
		{name: "channel", field: "channel_id", want: "c1", wantOK: true},
		{name: "sender", field: "sender_id", want: "u1", wantOK: true},
		{name: "unknown", field: "nope", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := msg.Field(tt.field)
			if ok != tt.wantOK {
				t.Fatalf("Field(%q) ok = %v, want %v", tt.field, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Field(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}

	var nilMsg *ChannelMessage
	if _, ok := nilMsg.Field("message_id"); ok {
		t.Error("nil message should not resolve fields")
	}
}

func TestMessageContentField(t *testing.T) {
	content := &MessageContent{
		Text:     "hello",
		Markdown: []MarkdownSpan{{Type: MarkdownBold, S: 0, E: 5}},
	}
	if got, ok := content.Field("t"); !ok || got != "hello" {
		t.Errorf("Field(t) = %v, %v", got, ok)
	}
	if got, ok := content.Field("text"); !ok || got != "hello" {
		t.Errorf("Field(text) = %v, %v", got, ok)
	}
	if got, ok := content.Field("mk"); !ok || len(got.([]MarkdownSpan)) != 1 {
		t.Errorf("Field(mk) = %v, %v", got, ok)
	}
	if _, ok := content.Field("nope"); ok {
		t.Error("unknown content key resolved")
	}
}

func TestButtonClickedValid(t *testing.T) {
	tests := []struct {
		name  string
		click *ButtonClicked
		want  bool
	}{
		{name: "nil", click: nil, want: false},
		{name: "complete", click: &ButtonClicked{ButtonID: "b", ChannelID: "c", MessageID: "m"}, want: true},
		{name: "missing button", click: &ButtonClicked{ChannelID: "c", MessageID: "m"}, want: false},
		{name: "missing message", click: &ButtonClicked{ButtonID: "b", ChannelID: "c"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.click.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventActorID(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{name: "sender wins", event: &Event{SenderID: "s", UserID: "u", CreatorID: "c"}, want: "s"},
		{name: "user next", event: &Event{UserID: "u", CreatorID: "c"}, want: "u"},
		{name: "creator last", event: &Event{CreatorID: "c"}, want: "c"},
		{name: "none", event: &Event{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.ActorID(); got != tt.want {
				t.Errorf("ActorID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserLabel(t *testing.T) {
	tests := []struct {
		name string
		user *User
		want string
	}{
		{name: "username", user: &User{ID: "1", Username: "alice", DisplayName: "Alice"}, want: "alice"},
		{name: "display name", user: &User{ID: "1", DisplayName: "Alice"}, want: "Alice"},
		{name: "name", user: &User{ID: "1", Name: "A"}, want: "A"},
		{name: "id fallback", user: &User{ID: "1"}, want: "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventFieldFallsBackToData(t *testing.T) {
	ev := &Event{Kind: EventAddClanUser, ClanID: "k1", Data: map[string]any{"invitee": "u9"}}

	if v, ok := ev.Field("clan_id"); !ok || v != "k1" {
		t.Errorf("Field(clan_id) = %v, %v", v, ok)
	}
	if v, ok := ev.Field("invitee"); !ok || v != "u9" {
		t.Errorf("Field(invitee) = %v, %v", v, ok)
	}
	if _, ok := ev.Field("missing"); ok {
		t.Error("Field(missing) should not resolve")
	}
}
