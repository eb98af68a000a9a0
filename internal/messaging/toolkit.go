package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/botkit/internal/backoff"
	"github.com/haasonsaas/botkit/internal/mentions"
	"github.com/haasonsaas/botkit/internal/observability"
	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/pkg/models"
)

var (
	// ErrNoMessage is returned by message helpers bound to no message id.
	ErrNoMessage = errors.New("messaging: message id is not available")
	// ErrNoSender is returned when a DM target has no sender id.
	ErrNoSender = errors.New("messaging: sender id is not available")
	// ErrNoChannel is returned when a send has no channel to go to.
	ErrNoChannel = errors.New("messaging: channel could not be resolved")
)

// Target addresses an outbound message.
type Target struct {
	ChannelID string
	ClanID    string
	TopicID   string
	Mode      int
	IsPublic  bool
	// ReplyTo, when set, adds a reference to the replied message.
	ReplyTo *models.ChannelMessage
}

// Toolkit sends drafts through a platform sender.
type Toolkit struct {
	sender platform.Sender
	utils  *platform.Utils
	roles  *mentions.RoleCache
	clicks *ClickRegistry
	logger *slog.Logger
	tracer *observability.Tracer
	retry  backoff.Loop
}

// defaultSendRetries bounds retries of transient send failures.
const defaultSendRetries = 3

// NewToolkit creates a toolkit. roles and clicks may be nil; a nil click
// registry drops inline handlers.
func NewToolkit(sender platform.Sender, utils *platform.Utils, roles *mentions.RoleCache, clicks *ClickRegistry, logger *slog.Logger) *Toolkit {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Toolkit{
		sender: sender,
		utils:  utils,
		roles:  roles,
		clicks: clicks,
		logger: logger.With("component", "messaging"),
	}
	t.retry = backoff.Loop{
		Policy:     backoff.DefaultPolicy(),
		MaxRetries: defaultSendRetries,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			t.logger.Warn("send failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	return t
}

// SetTracer makes sends open a span on tracer.
func (t *Toolkit) SetTracer(tracer *observability.Tracer) {
	t.tracer = tracer
}

// SetSendRetry replaces the retry loop for transient send failures. Errors
// whose Retryable method returns false are never retried.
func (t *Toolkit) SetSendRetry(loop backoff.Loop) {
	t.retry = loop
}

// Clicks returns the inline click registry.
func (t *Toolkit) Clicks() *ClickRegistry {
	return t.clicks
}

// Utils returns the lookup helpers.
func (t *Toolkit) Utils() *platform.Utils {
	return t.utils
}

// Prepare builds d for target with mention placeholders resolved against
// the target clan. The returned inline handlers are registered by the
// caller once the message is delivered.
func (t *Toolkit) Prepare(ctx context.Context, target Target, d *Draft) (*models.OutboundMessage, map[string]ClickHandler, error) {
	if d == nil {
		d = Build()
	}
	payload, err := d.Payload()
	if err != nil {
		return nil, nil, err
	}

	content := payload.Content
	marks := payload.Marks
	if len(payload.Placeholders) > 0 && content.Text != "" {
		var users mentions.UserLookup
		if t.utils != nil {
			users = t.utils
		}
		res := mentions.Resolve(ctx, content.Text, payload.Placeholders,
			mentions.NewResolvers(users, t.roles, target.ClanID))
		content.Text = res.Text
		marks = append(marks, res.Marks...)
	}

	out := &models.OutboundMessage{
		ChannelID:   target.ChannelID,
		ClanID:      target.ClanID,
		TopicID:     target.TopicID,
		Mode:        target.Mode,
		IsPublic:    target.IsPublic,
		Content:     content,
		Mentions:    marks,
		Attachments: payload.Attachments,
	}
	if ref := target.ReplyTo; ref != nil {
		out.References = []models.MessageRef{{
			MessageID:         ref.ID,
			SenderID:          ref.SenderID,
			SenderUsername:    ref.Username,
			SenderDisplayName: ref.DisplayName,
			Content:           ref.Content.Text,
			HasAttachment:     len(ref.Attachments) > 0,
		}}
	}
	return out, payload.Inline, nil
}

// register installs inline handlers of a delivered message.
func (t *Toolkit) register(inline map[string]ClickHandler) {
	if len(inline) == 0 {
		return
	}
	if t.clicks == nil {
		t.logger.Warn("inline button handlers dropped: no click registry", "count", len(inline))
		return
	}
	for id, fn := range inline {
		t.clicks.Register(id, fn)
	}
}

// Send prepares and sends d, returning a handle on the sent message.
func (t *Toolkit) Send(ctx context.Context, target Target, d *Draft) (*ManagedMessage, error) {
	if target.ChannelID == "" {
		return nil, ErrNoChannel
	}
	out, inline, err := t.Prepare(ctx, target, d)
	if err != nil {
		return nil, err
	}
	var receipt *models.Receipt
	err = observability.WithSpan(ctx, t.tracer, "messaging.send", func(ctx context.Context) error {
		return t.retry.Run(ctx, func(ctx context.Context, _ int) error {
			r, err := t.sender.Send(ctx, out)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("send to channel %s: %w", target.ChannelID, err)
	}
	t.register(inline)
	sent := models.ChannelMessage{
		ID:          receipt.MessageID,
		ChannelID:   target.ChannelID,
		ClanID:      target.ClanID,
		TopicID:     target.TopicID,
		Mode:        target.Mode,
		IsPublic:    target.IsPublic,
		Content:     out.Content,
		Mentions:    out.Mentions,
		Attachments: out.Attachments,
		CreatedAt:   receipt.CreatedAt,
	}
	return t.Message(&sent), nil
}

// Message wraps msg with helpers.
func (t *Toolkit) Message(msg *models.ChannelMessage) *ManagedMessage {
	m := &ManagedMessage{tk: t}
	if msg != nil {
		m.msg = *msg
	}
	return m
}

// DM returns a direct message helper.
func (t *Toolkit) DM() *DMHelper {
	return &DMHelper{tk: t}
}

// Channel returns a helper bound to a channel.
func (t *Toolkit) Channel(channelID, clanID string) *ChannelHelper {
	return &ChannelHelper{tk: t, channelID: channelID, clanID: clanID}
}

// AutoContext bundles the helpers for the message being handled.
type AutoContext struct {
	Message *ManagedMessage
	DM      *DMHelper
	Channel *ChannelHelper
}

// Auto builds the helper bundle for msg.
func (t *Toolkit) Auto(msg *models.ChannelMessage) *AutoContext {
	managed := t.Message(msg)
	return &AutoContext{
		Message: managed,
		DM:      t.DM(),
		Channel: t.Channel(managed.msg.ChannelID, managed.msg.ClanID),
	}
}
