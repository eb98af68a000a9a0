package models

// EventKind names an inbound platform event.
type EventKind string

const (
	EventChannelMessage   EventKind = "channel_message"
	EventButtonClicked    EventKind = "message_button_clicked"
	EventDropdownSelected EventKind = "dropdown_box_selected"
	EventMessageReaction  EventKind = "message_reaction"
	EventAddClanUser      EventKind = "add_clan_user"
	EventChannelCreated   EventKind = "channel_created"
	EventUserJoinChannel  EventKind = "user_channel_added"
	EventReady            EventKind = "ready"
)

// Event is the envelope every transport delivers. Exactly one of Message or
// Click is set for message and component events; other kinds carry Data.
type Event struct {
	Kind      EventKind       `json:"event"`
	ClanID    string          `json:"clan_id,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	SenderID  string          `json:"sender_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	CreatorID string          `json:"creator_id,omitempty"`
	Message   *ChannelMessage `json:"message,omitempty"`
	Click     *ButtonClicked  `json:"click,omitempty"`
	Data      map[string]any  `json:"data,omitempty"`
}

// NewMessageEvent wraps a channel message.
func NewMessageEvent(msg *ChannelMessage) *Event {
	return &Event{
		Kind:      EventChannelMessage,
		ClanID:    msg.ClanID,
		ChannelID: msg.ChannelID,
		SenderID:  msg.SenderID,
		Message:   msg,
	}
}

// NewClickEvent wraps a button click.
func NewClickEvent(click *ButtonClicked) *Event {
	return &Event{
		Kind:      EventButtonClicked,
		ClanID:    click.ClanID,
		ChannelID: click.ChannelID,
		UserID:    click.UserID,
		Click:     click,
	}
}

// ActorID returns the id of the user behind the event: sender, then user,
// then creator.
func (e *Event) ActorID() string {
	if e == nil {
		return ""
	}
	switch {
	case e.SenderID != "":
		return e.SenderID
	case e.UserID != "":
		return e.UserID
	default:
		return e.CreatorID
	}
}

// Field implements FieldSelector. Data keys are consulted after the
// envelope fields.
func (e *Event) Field(name string) (any, bool) {
	if e == nil {
		return nil, false
	}
	switch name {
	case "event":
		return e.Kind, true
	case "clan_id":
		return e.ClanID, true
	case "channel_id":
		return e.ChannelID, true
	case "sender_id":
		return e.SenderID, true
	case "user_id":
		return e.UserID, true
	case "creator_id":
		return e.CreatorID, true
	}
	if v, ok := e.Data[name]; ok {
		return v, true
	}
	return nil, false
}
