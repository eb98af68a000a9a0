package models

import (
	"time"
)

// Platform identifies the chat backend an adapter talks to.
type Platform string

const (
	PlatformDiscord Platform = "discord"
	PlatformGateway Platform = "gateway"
	PlatformMemory  Platform = "memory"
)

// FieldSelector exposes the JSON fields of a payload or entity by name.
// Parameter selectors use it to pick one field instead of the whole value.
type FieldSelector interface {
	Field(name string) (any, bool)
}

// ChannelMessage is an inbound text message posted to a channel.
type ChannelMessage struct {
	ID          string         `json:"message_id"`
	ChannelID   string         `json:"channel_id"`
	ClanID      string         `json:"clan_id,omitempty"`
	TopicID     string         `json:"topic_id,omitempty"`
	SenderID    string         `json:"sender_id"`
	Username    string         `json:"username,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Content     MessageContent `json:"content"`
	Mentions    []Mention      `json:"mentions"`
	Attachments []Attachment   `json:"attachments"`
	References  []MessageRef   `json:"references"`
	Mode        int            `json:"mode,omitempty"`
	IsPublic    bool           `json:"is_public"`
	CreatedAt   time.Time      `json:"create_time"`
}

// MessageContent is the body of a chat message.
type MessageContent struct {
	Text       string         `json:"t"`
	Markdown   []MarkdownSpan `json:"mk,omitempty"`
	Components []ActionRow    `json:"components,omitempty"`
	Embeds     []Embed        `json:"embed,omitempty"`
}

// Markdown span types.
const (
	MarkdownPre  = "pre"
	MarkdownCode = "c"
	MarkdownBold = "b"
)

// MarkdownSpan marks a formatted range of the text, e.g. a pre block.
type MarkdownSpan struct {
	Type string `json:"type"`
	S    int    `json:"s"`
	E    int    `json:"e"`
}

// Mention marks a user or role mention inside message text. S and E are byte
// offsets into the text, E exclusive.
type Mention struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"rolename,omitempty"`
	S        int    `json:"s"`
	E        int    `json:"e"`
}

// IsRole reports whether the mention targets a role.
func (m Mention) IsRole() bool {
	return m.RoleID != ""
}

// Attachment represents a file or media attachment.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	FileType string `json:"filetype,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// MessageRef points at a message being replied to.
type MessageRef struct {
	MessageID         string `json:"message_ref_id"`
	SenderID          string `json:"message_sender_id,omitempty"`
	SenderUsername    string `json:"message_sender_username,omitempty"`
	SenderDisplayName string `json:"message_sender_display_name,omitempty"`
	Content           string `json:"content,omitempty"`
	HasAttachment     bool   `json:"has_attachment,omitempty"`
}

// Normalize replaces nil collections with empty ones so handlers can range
// and index without nil checks.
func (m *ChannelMessage) Normalize() {
	if m.Mentions == nil {
		m.Mentions = []Mention{}
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	if m.References == nil {
		m.References = []MessageRef{}
	}
}

// Field implements FieldSelector over the content keys.
func (c *MessageContent) Field(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case "t", "text":
		return c.Text, true
	case "mk", "markdown":
		return c.Markdown, true
	case "components":
		return c.Components, true
	case "embed", "embeds":
		return c.Embeds, true
	default:
		return nil, false
	}
}

// Field implements FieldSelector.
func (m *ChannelMessage) Field(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	switch name {
	case "message_id", "id":
		return m.ID, true
	case "channel_id":
		return m.ChannelID, true
	case "clan_id":
		return m.ClanID, true
	case "topic_id":
		return m.TopicID, true
	case "sender_id":
		return m.SenderID, true
	case "username":
		return m.Username, true
	case "display_name":
		return m.DisplayName, true
	case "content":
		return m.Content, true
	case "mentions":
		return m.Mentions, true
	case "attachments":
		return m.Attachments, true
	case "references":
		return m.References, true
	case "mode":
		return m.Mode, true
	case "is_public":
		return m.IsPublic, true
	case "create_time":
		return m.CreatedAt, true
	default:
		return nil, false
	}
}

// ButtonClicked is an inbound interactive-component click.
type ButtonClicked struct {
	ButtonID  string `json:"button_id"`
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	ClanID    string `json:"clan_id,omitempty"`
	UserID    string `json:"user_id"`
	ExtraData string `json:"extra_data,omitempty"`
}

// Valid reports whether the click carries the ids routing depends on.
func (b *ButtonClicked) Valid() bool {
	return b != nil && b.ButtonID != "" && b.ChannelID != "" && b.MessageID != ""
}

// Field implements FieldSelector.
func (b *ButtonClicked) Field(name string) (any, bool) {
	if b == nil {
		return nil, false
	}
	switch name {
	case "button_id":
		return b.ButtonID, true
	case "message_id":
		return b.MessageID, true
	case "channel_id":
		return b.ChannelID, true
	case "clan_id":
		return b.ClanID, true
	case "user_id":
		return b.UserID, true
	case "extra_data":
		return b.ExtraData, true
	default:
		return nil, false
	}
}
