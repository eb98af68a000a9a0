package messaging

import (
	"context"
	"fmt"

	"github.com/haasonsaas/botkit/pkg/models"
)

// ManagedMessage is a message the bot can act on.
type ManagedMessage struct {
	tk  *Toolkit
	msg models.ChannelMessage
}

// Raw returns the wrapped message.
func (m *ManagedMessage) Raw() models.ChannelMessage { return m.msg }

// ID returns the message id.
func (m *ManagedMessage) ID() string { return m.msg.ID }

// ChannelID returns the channel the message lives in.
func (m *ManagedMessage) ChannelID() string { return m.msg.ChannelID }

// SenderID returns the author id.
func (m *ManagedMessage) SenderID() string { return m.msg.SenderID }

func (m *ManagedMessage) target() Target {
	return Target{
		ChannelID: m.msg.ChannelID,
		ClanID:    m.msg.ClanID,
		TopicID:   m.msg.TopicID,
		Mode:      m.msg.Mode,
		IsPublic:  m.msg.IsPublic,
	}
}

// Reply sends d to the same channel, referencing this message.
func (m *ManagedMessage) Reply(ctx context.Context, d *Draft) (*ManagedMessage, error) {
	target := m.target()
	if m.msg.ID != "" {
		target.ReplyTo = &m.msg
	}
	return m.tk.Send(ctx, target, d)
}

// Update replaces the message content with d.
func (m *ManagedMessage) Update(ctx context.Context, d *Draft) error {
	if m.msg.ID == "" {
		return ErrNoMessage
	}
	out, inline, err := m.tk.Prepare(ctx, m.target(), d)
	if err != nil {
		return err
	}
	if err := m.tk.sender.Update(ctx, m.msg.ID, out); err != nil {
		return fmt.Errorf("update message %s: %w", m.msg.ID, err)
	}
	m.tk.register(inline)
	m.msg.Content = out.Content
	m.msg.Mentions = out.Mentions
	return nil
}

// Delete removes the message.
func (m *ManagedMessage) Delete(ctx context.Context) error {
	if m.msg.ID == "" {
		return ErrNoMessage
	}
	if err := m.tk.sender.Delete(ctx, m.msg.ChannelID, m.msg.ID); err != nil {
		return fmt.Errorf("delete message %s: %w", m.msg.ID, err)
	}
	return nil
}

// React adds a reaction, or removes it when remove is set.
func (m *ManagedMessage) React(ctx context.Context, emoji string, remove bool) error {
	if m.msg.ID == "" {
		return ErrNoMessage
	}
	var err error
	if remove {
		err = m.tk.sender.RemoveReaction(ctx, m.msg.ChannelID, m.msg.ID, emoji)
	} else {
		err = m.tk.sender.React(ctx, m.msg.ChannelID, m.msg.ID, emoji)
	}
	if err != nil {
		return fmt.Errorf("react to message %s: %w", m.msg.ID, err)
	}
	return nil
}

// AddReaction adds emoji to the message.
func (m *ManagedMessage) AddReaction(ctx context.Context, emoji string) error {
	return m.React(ctx, emoji, false)
}

// RemoveReaction removes the bot's emoji from the message.
func (m *ManagedMessage) RemoveReaction(ctx context.Context, emoji string) error {
	return m.React(ctx, emoji, true)
}

// Fetch reloads the message from the platform, or returns nil.
func (m *ManagedMessage) Fetch(ctx context.Context) *models.ChannelMessage {
	if m.tk.utils == nil {
		return nil
	}
	return m.tk.utils.Message(ctx, m.msg.ChannelID, m.msg.ID)
}

// SendDM sends d privately to the message author.
func (m *ManagedMessage) SendDM(ctx context.Context, d *Draft) (*ManagedMessage, error) {
	if m.msg.SenderID == "" {
		return nil, ErrNoSender
	}
	return m.tk.DM().Send(ctx, m.msg.SenderID, d)
}

// DMHelper sends direct messages.
type DMHelper struct {
	tk *Toolkit
}

// Send opens a DM channel with userID and sends d.
func (h *DMHelper) Send(ctx context.Context, userID string, d *Draft) (*ManagedMessage, error) {
	if userID == "" {
		return nil, ErrNoSender
	}
	ch, err := h.tk.sender.CreateDM(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create DM channel with user %s: %w", userID, err)
	}
	if ch == nil || ch.ID == "" {
		return nil, fmt.Errorf("create DM channel with user %s: %w", userID, ErrNoChannel)
	}
	return h.tk.Send(ctx, Target{ChannelID: ch.ID}, d)
}

// ChannelHelper sends to one channel.
type ChannelHelper struct {
	tk        *Toolkit
	channelID string
	clanID    string
}

// ID returns the bound channel id.
func (h *ChannelHelper) ID() string { return h.channelID }

// Send sends d to the bound channel.
func (h *ChannelHelper) Send(ctx context.Context, d *Draft) (*ManagedMessage, error) {
	if h.channelID == "" {
		return nil, ErrNoChannel
	}
	return h.tk.Send(ctx, Target{ChannelID: h.channelID, ClanID: h.clanID}, d)
}

// Find returns a helper bound to another channel. The clan is looked up so
// role mentions resolve; a failed lookup keeps the current clan.
func (h *ChannelHelper) Find(ctx context.Context, channelID string) *ChannelHelper {
	clanID := h.clanID
	if h.tk.utils != nil {
		if ch := h.tk.utils.Channel(ctx, channelID); ch != nil && ch.ClanID != "" {
			clanID = ch.ClanID
		}
	}
	return &ChannelHelper{tk: h.tk, channelID: channelID, clanID: clanID}
}
