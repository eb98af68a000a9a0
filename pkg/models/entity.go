package models

import "strings"

// Channel is a text channel, thread, or direct-message conversation.
type Channel struct {
	ID        string `json:"id"`
	ClanID    string `json:"clan_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
	Name      string `json:"channel_label"`
	Type      int    `json:"type"`
	IsPrivate bool   `json:"channel_private"`
	IsDM      bool   `json:"is_dm,omitempty"`
}

// Field implements FieldSelector.
func (c *Channel) Field(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case "id", "channel_id":
		return c.ID, true
	case "clan_id":
		return c.ClanID, true
	case "parent_id":
		return c.ParentID, true
	case "channel_label", "name":
		return c.Name, true
	case "type":
		return c.Type, true
	case "channel_private":
		return c.IsPrivate, true
	case "is_dm":
		return c.IsDM, true
	default:
		return nil, false
	}
}

// Clan is a community grouping channels, members and roles (a guild on
// platforms that call it that).
type Clan struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id,omitempty"`
}

// Field implements FieldSelector.
func (c *Clan) Field(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case "id", "clan_id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "owner_id":
		return c.OwnerID, true
	default:
		return nil, false
	}
}

// User is a platform account.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Name        string `json:"name,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
	IsBot       bool   `json:"is_bot,omitempty"`
	DMChannelID string `json:"dm_channel_id,omitempty"`
}

// Label returns the best human-readable name for the user, falling back to
// the id.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	for _, candidate := range []string{u.Username, u.DisplayName, u.Name} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return u.ID
}

// Field implements FieldSelector.
func (u *User) Field(name string) (any, bool) {
	if u == nil {
		return nil, false
	}
	switch name {
	case "id", "user_id":
		return u.ID, true
	case "username":
		return u.Username, true
	case "display_name":
		return u.DisplayName, true
	case "name":
		return u.Name, true
	case "avatar":
		return u.AvatarURL, true
	case "is_bot":
		return u.IsBot, true
	case "dm_channel_id":
		return u.DMChannelID, true
	default:
		return nil, false
	}
}

// Role is a clan role that can be mentioned.
type Role struct {
	ID     string `json:"id"`
	ClanID string `json:"clan_id,omitempty"`
	Title  string `json:"title"`
	Slug   string `json:"slug,omitempty"`
}

// Name returns the role title, falling back to the slug.
func (r Role) Name() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Slug
}
