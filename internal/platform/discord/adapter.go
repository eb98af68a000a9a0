// Package discord adapts a Discord bot session to the platform contract.
// Guilds map to clans; message components map to interactive buttons.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/ratelimit"
	"github.com/haasonsaas/botkit/pkg/models"
)

// discordSession is the subset of *discordgo.Session the adapter uses. It
// allows for mocking the session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()

	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)

	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emoji string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emoji, userID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Config holds configuration for the Discord adapter.
type Config struct {
	// Token is the bot token from the Discord Developer Portal (required).
	Token string

	// RateLimit throttles outbound calls per channel (operations per second).
	RateLimit float64

	// RateBurst is the burst capacity per channel.
	RateBurst int

	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return platform.ErrInvalidInput("discord token is required", nil)
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter implements platform.Client for Discord.
type Adapter struct {
	platform.Hub

	config  Config
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	mu       sync.RWMutex
	session  discordSession
	removers []func()
	botID    string
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ platform.Client = (*Adapter)(nil)

// NewAdapter creates a Discord adapter. The gateway connection is opened
// by Connect.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		config: config,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: config.RateLimit,
			BurstSize:         config.RateBurst,
			Enabled:           true,
		}),
		logger: config.Logger.With("component", "discord"),
	}, nil
}

func newSession(token string) (discordSession, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	// Reconnects are driven by the session manager.
	dg.ShouldReconnectOnError = false
	return dg, nil
}

// BotID returns the bot's user id once the gateway is ready.
func (a *Adapter) BotID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.botID
}

// Connect opens the gateway connection and installs event handlers.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		s, err := newSession(a.config.Token)
		if err != nil {
			return platform.ErrAuthentication("create discord session", err)
		}
		a.session = s
	}
	if len(a.removers) == 0 {
		a.removers = []func(){
			a.session.AddHandler(a.handleMessageCreate),
			a.session.AddHandler(a.handleInteractionCreate),
			a.session.AddHandler(a.handleReady),
			a.session.AddHandler(a.handleDisconnect),
			a.session.AddHandler(a.handleMemberAdd),
			a.session.AddHandler(a.handleReactionAdd),
			a.session.AddHandler(a.handleChannelCreate),
		}
	}

	if err := a.session.Open(); err != nil {
		if errors.Is(err, discordgo.ErrWSAlreadyOpen) {
			return nil
		}
		return platform.ErrConnection("open discord gateway", err)
	}
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.logger.Info("discord gateway connected")
	return nil
}

// Close closes the gateway connection and removes event handlers.
func (a *Adapter) Close(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return nil
	}
	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.session.Close(); err != nil {
		return platform.ErrConnection("close discord gateway", err)
	}
	a.logger.Info("discord gateway closed")
	return nil
}

func (a *Adapter) current() (discordSession, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, platform.ErrUnavailable("discord session not connected", nil)
	}
	return a.session, nil
}

func (a *Adapter) eventContext() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// Event handlers

func (a *Adapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	msg := convertMessage(m.Message)
	if msg == nil {
		return
	}
	a.logger.Debug("received message",
		"channel_id", msg.ChannelID,
		"user_id", msg.SenderID,
		"content_length", len(msg.Content.Text))
	a.Publish(a.eventContext(), models.NewMessageEvent(msg))
}

func (a *Adapter) handleInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	ev := convertInteraction(i.Interaction)
	if ev == nil {
		return
	}

	// Acknowledge so the client does not report a failed interaction.
	if s, err := a.current(); err == nil {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			a.logger.Warn("acknowledge interaction failed", "interaction_id", i.ID, "error", err)
		}
	}
	a.logger.Debug("received component interaction",
		"interaction_id", i.ID,
		"button_id", ev.Click.ButtonID)
	a.Publish(a.eventContext(), ev)
}

func (a *Adapter) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	var botID string
	if r.User != nil {
		botID = r.User.ID
	}
	a.mu.Lock()
	a.botID = botID
	a.mu.Unlock()

	a.logger.Info("discord connection ready", "bot_id", botID, "guilds", len(r.Guilds))
	a.Publish(a.eventContext(), &models.Event{
		Kind:   models.EventReady,
		UserID: botID,
		Data:   map[string]any{"guilds": len(r.Guilds)},
	})
}

func (a *Adapter) handleDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	a.logger.Warn("disconnected from discord")
	a.PublishDisconnect(platform.ErrConnection("discord gateway disconnected", nil))
}

func (a *Adapter) handleMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	a.Publish(a.eventContext(), &models.Event{
		Kind:   models.EventAddClanUser,
		ClanID: m.GuildID,
		UserID: m.User.ID,
		Data:   map[string]any{"username": m.User.Username},
	})
}

func (a *Adapter) handleReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil {
		return
	}
	a.Publish(a.eventContext(), &models.Event{
		Kind:      models.EventMessageReaction,
		ClanID:    r.GuildID,
		ChannelID: r.ChannelID,
		UserID:    r.UserID,
		Data: map[string]any{
			"message_id": r.MessageID,
			"emoji":      r.Emoji.Name,
		},
	})
}

func (a *Adapter) handleChannelCreate(_ *discordgo.Session, c *discordgo.ChannelCreate) {
	if c.Channel == nil {
		return
	}
	a.Publish(a.eventContext(), &models.Event{
		Kind:      models.EventChannelCreated,
		ClanID:    c.GuildID,
		ChannelID: c.ID,
		CreatorID: c.OwnerID,
		Data:      map[string]any{"channel_label": c.Name},
	})
}

// Directory

// FetchChannel implements platform.Directory.
func (a *Adapter) FetchChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	ch, err := s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch channel", err).WithContext("channel_id", channelID)
	}
	return convertChannel(ch), nil
}

// FetchClan implements platform.Directory.
func (a *Adapter) FetchClan(ctx context.Context, clanID string) (*models.Clan, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	g, err := s.Guild(clanID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch guild", err).WithContext("clan_id", clanID)
	}
	return &models.Clan{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID}, nil
}

// FetchUser implements platform.Directory.
func (a *Adapter) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	u, err := s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch user", err).WithContext("user_id", userID)
	}
	return convertUser(u), nil
}

// FetchMessage implements platform.Directory.
func (a *Adapter) FetchMessage(ctx context.Context, channelID, messageID string) (*models.ChannelMessage, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	m, err := s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("fetch message", err).WithContext("message_id", messageID)
	}
	msg := convertMessage(m)
	if msg == nil {
		return nil, platform.ErrNotFound("message has no author", nil).WithContext("message_id", messageID)
	}
	return msg, nil
}

// ListRoles implements platform.RoleLister.
func (a *Adapter) ListRoles(ctx context.Context, clanID string) ([]models.Role, error) {
	s, err := a.current()
	if err != nil {
		return nil, err
	}
	roles, err := s.GuildRoles(clanID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("list roles", err).WithContext("clan_id", clanID)
	}
	out := make([]models.Role, 0, len(roles))
	for _, r := range roles {
		if r == nil {
			continue
		}
		out = append(out, models.Role{ID: r.ID, ClanID: clanID, Title: r.Name})
	}
	return out, nil
}

// Sender

// Send implements platform.Sender.
func (a *Adapter) Send(ctx context.Context, msg *models.OutboundMessage) (*models.Receipt, error) {
	if msg == nil || msg.ChannelID == "" {
		return nil, platform.ErrInvalidInput("outbound message needs a channel id", nil)
	}
	s, err := a.prepare(ctx, msg.ChannelID)
	if err != nil {
		return nil, err
	}
	sent, err := s.ChannelMessageSendComplex(msg.ChannelID, buildMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("send message", err).WithContext("channel_id", msg.ChannelID)
	}
	return &models.Receipt{MessageID: sent.ID, ChannelID: sent.ChannelID, CreatedAt: sent.Timestamp}, nil
}

// Update implements platform.Sender.
func (a *Adapter) Update(ctx context.Context, messageID string, msg *models.OutboundMessage) error {
	if msg == nil || msg.ChannelID == "" || messageID == "" {
		return platform.ErrInvalidInput("update needs a channel id and a message id", nil)
	}
	s, err := a.prepare(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	if _, err := s.ChannelMessageEditComplex(buildMessageEdit(messageID, msg), discordgo.WithContext(ctx)); err != nil {
		return classify("edit message", err).WithContext("message_id", messageID)
	}
	return nil
}

// Delete implements platform.Sender.
func (a *Adapter) Delete(ctx context.Context, channelID, messageID string) error {
	s, err := a.prepare(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return classify("delete message", err).WithContext("message_id", messageID)
	}
	return nil
}

// React implements platform.Sender.
func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	s, err := a.prepare(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return classify("add reaction", err).WithContext("message_id", messageID)
	}
	return nil
}

// RemoveReaction implements platform.Sender.
func (a *Adapter) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	s, err := a.prepare(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.MessageReactionRemove(channelID, messageID, emoji, "@me", discordgo.WithContext(ctx)); err != nil {
		return classify("remove reaction", err).WithContext("message_id", messageID)
	}
	return nil
}

// CreateDM implements platform.Sender.
func (a *Adapter) CreateDM(ctx context.Context, userID string) (*models.Channel, error) {
	s, err := a.prepare(ctx, "dm:"+userID)
	if err != nil {
		return nil, err
	}
	ch, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify("create dm", err).WithContext("user_id", userID)
	}
	return convertChannel(ch), nil
}

func (a *Adapter) prepare(ctx context.Context, key string) (discordSession, error) {
	if err := a.limiter.Wait(ctx, key); err != nil {
		return nil, platform.ErrRateLimit("rate limit wait cancelled", err)
	}
	return a.current()
}

// classify maps REST failures onto platform error codes.
func classify(op string, err error) *platform.Error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch code := rest.Response.StatusCode; {
		case code == 401 || code == 403:
			return platform.ErrAuthentication(op, err)
		case code == 404:
			return platform.ErrNotFound(op, err)
		case code == 429:
			return platform.ErrRateLimit(op, err)
		case code >= 500:
			return platform.ErrUnavailable(op, err)
		default:
			return platform.ErrInvalidInput(op, err)
		}
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return platform.ErrRateLimit(op, err)
	}
	return platform.NewError(platform.ErrCodeInternal, fmt.Sprintf("%s failed", op), err)
}
