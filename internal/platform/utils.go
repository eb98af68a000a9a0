package platform

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/botkit/pkg/models"
)

// Utils wraps a Directory with lookups that never fail: errors are logged
// at warn with the failing id and reported as nil. Handlers receive it as
// their utils handle.
type Utils struct {
	dir    Directory
	roles  RoleLister
	tokens TokenSender
	logger *slog.Logger

	// OnLookupFailure, when set, is called with the entity kind of every
	// failed lookup.
	OnLookupFailure func(kind string)
}

// NewUtils creates lookup helpers over dir. roles and tokens may be nil.
func NewUtils(dir Directory, roles RoleLister, tokens TokenSender, logger *slog.Logger) *Utils {
	if logger == nil {
		logger = slog.Default()
	}
	return &Utils{
		dir:    dir,
		roles:  roles,
		tokens: tokens,
		logger: logger.With("component", "platform"),
	}
}

// Directory returns the wrapped directory.
func (u *Utils) Directory() Directory {
	return u.dir
}

// Channel fetches a channel, or nil.
func (u *Utils) Channel(ctx context.Context, channelID string) *models.Channel {
	if channelID == "" {
		return nil
	}
	ch, err := u.dir.FetchChannel(ctx, channelID)
	if err != nil {
		u.failed("channel", err, "channel_id", channelID)
		return nil
	}
	return ch
}

// Clan fetches a clan, or nil.
func (u *Utils) Clan(ctx context.Context, clanID string) *models.Clan {
	if clanID == "" {
		return nil
	}
	clan, err := u.dir.FetchClan(ctx, clanID)
	if err != nil {
		u.failed("clan", err, "clan_id", clanID)
		return nil
	}
	return clan
}

// User fetches a user, or nil.
func (u *Utils) User(ctx context.Context, userID string) *models.User {
	if userID == "" {
		return nil
	}
	user, err := u.dir.FetchUser(ctx, userID)
	if err != nil {
		u.failed("user", err, "user_id", userID)
		return nil
	}
	return user
}

// Message fetches a message by channel and id, or nil.
func (u *Utils) Message(ctx context.Context, channelID, messageID string) *models.ChannelMessage {
	if channelID == "" || messageID == "" {
		return nil
	}
	msg, err := u.dir.FetchMessage(ctx, channelID, messageID)
	if err != nil {
		u.failed("message", err, "channel_id", channelID, "message_id", messageID)
		return nil
	}
	return msg
}

// Roles lists clan roles, or nil when the platform has no role support or
// the lookup fails.
func (u *Utils) Roles(ctx context.Context, clanID string) []models.Role {
	if u.roles == nil || clanID == "" {
		return nil
	}
	roles, err := u.roles.ListRoles(ctx, clanID)
	if err != nil {
		u.failed("roles", err, "clan_id", clanID)
		return nil
	}
	return roles
}

// SendToken transfers tokens when the platform supports it.
func (u *Utils) SendToken(ctx context.Context, receiverID string, amount int64, note string) error {
	if u.tokens == nil {
		return ErrUnsupported("token transfer is not supported by this platform")
	}
	return u.tokens.SendToken(ctx, receiverID, amount, note)
}

func (u *Utils) failed(kind string, err error, ids ...any) {
	args := append([]any{"kind", kind, "error", err}, ids...)
	u.logger.Warn("directory lookup failed", args...)
	if u.OnLookupFailure != nil {
		u.OnLookupFailure(kind)
	}
}
