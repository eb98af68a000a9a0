package models

import "time"

// ButtonStyle selects how a button renders.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
	ButtonLink
)

// Button is an interactive button inside an action row.
type Button struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Style    ButtonStyle `json:"style"`
	URL      string      `json:"url,omitempty"`
	Disabled bool        `json:"disable,omitempty"`
}

// ActionRow groups up to five buttons on one line.
type ActionRow struct {
	Components []Button `json:"components"`
}

// MaxButtonsPerRow is the number of buttons one action row holds.
const MaxButtonsPerRow = 5

// EmbedField is one name/value pair in an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is a rich card attached to a message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	ImageURL    string       `json:"image,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      string       `json:"footer,omitempty"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
}

// OutboundMessage is a fully resolved message ready for the wire.
type OutboundMessage struct {
	ChannelID   string         `json:"channel_id"`
	ClanID      string         `json:"clan_id,omitempty"`
	TopicID     string         `json:"topic_id,omitempty"`
	Mode        int            `json:"mode,omitempty"`
	IsPublic    bool           `json:"is_public"`
	Content     MessageContent `json:"content"`
	Mentions    []Mention      `json:"mentions,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	References  []MessageRef   `json:"references,omitempty"`
}

// Receipt acknowledges a delivered message.
type Receipt struct {
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"create_time"`
}
