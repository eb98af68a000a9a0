package gateway

import (
	"context"

	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/pkg/models"
)

// FetchChannel implements platform.Directory.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	var ch models.Channel
	if err := c.call(ctx, "directory", methodChannelGet, idParams{ID: channelID}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// FetchClan implements platform.Directory.
func (c *Client) FetchClan(ctx context.Context, clanID string) (*models.Clan, error) {
	var clan models.Clan
	if err := c.call(ctx, "directory", methodClanGet, idParams{ID: clanID}, &clan); err != nil {
		return nil, err
	}
	return &clan, nil
}

// FetchUser implements platform.Directory.
func (c *Client) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := c.call(ctx, "directory", methodUserGet, idParams{ID: userID}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FetchMessage implements platform.Directory.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*models.ChannelMessage, error) {
	var msg models.ChannelMessage
	params := messageParams{ChannelID: channelID, MessageID: messageID}
	if err := c.call(ctx, "directory", methodMessageGet, params, &msg); err != nil {
		return nil, err
	}
	msg.Normalize()
	return &msg, nil
}

// ListRoles implements platform.RoleLister.
func (c *Client) ListRoles(ctx context.Context, clanID string) ([]models.Role, error) {
	var roles []models.Role
	if err := c.call(ctx, "directory", methodRolesList, idParams{ID: clanID}, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Send implements platform.Sender.
func (c *Client) Send(ctx context.Context, msg *models.OutboundMessage) (*models.Receipt, error) {
	if msg == nil || msg.ChannelID == "" {
		return nil, platform.ErrInvalidInput("outbound message needs a channel id", nil)
	}
	var receipt models.Receipt
	if err := c.call(ctx, msg.ChannelID, methodMessageSend, msg, &receipt); err != nil {
		return nil, err
	}
	if receipt.ChannelID == "" {
		receipt.ChannelID = msg.ChannelID
	}
	return &receipt, nil
}

// Update implements platform.Sender.
func (c *Client) Update(ctx context.Context, messageID string, msg *models.OutboundMessage) error {
	if msg == nil || msg.ChannelID == "" || messageID == "" {
		return platform.ErrInvalidInput("update needs a channel id and a message id", nil)
	}
	return c.call(ctx, msg.ChannelID, methodMessageUpdate, updateParams{MessageID: messageID, Message: msg}, nil)
}

// Delete implements platform.Sender.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	return c.call(ctx, channelID, methodMessageDelete, messageParams{ChannelID: channelID, MessageID: messageID}, nil)
}

// React implements platform.Sender.
func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	params := messageParams{ChannelID: channelID, MessageID: messageID, Emoji: emoji}
	return c.call(ctx, channelID, methodReactionAdd, params, nil)
}

// RemoveReaction implements platform.Sender.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	params := messageParams{ChannelID: channelID, MessageID: messageID, Emoji: emoji}
	return c.call(ctx, channelID, methodReactionRemove, params, nil)
}

// CreateDM implements platform.Sender.
func (c *Client) CreateDM(ctx context.Context, userID string) (*models.Channel, error) {
	var ch models.Channel
	if err := c.call(ctx, "dm:"+userID, methodDMCreate, idParams{ID: userID}, &ch); err != nil {
		return nil, err
	}
	ch.IsDM = true
	return &ch, nil
}

// SendToken implements platform.TokenSender.
func (c *Client) SendToken(ctx context.Context, receiverID string, amount int64, note string) error {
	if amount <= 0 {
		return platform.ErrInvalidInput("token amount must be positive", nil)
	}
	params := tokenParams{ReceiverID: receiverID, Amount: amount, Note: note}
	return c.call(ctx, "token:"+receiverID, methodTokenSend, params, nil)
}
