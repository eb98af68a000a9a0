// Package platform defines the contract between the dispatch runtime and a
// chat platform: inbound event transport, entity lookup and outbound sends.
package platform

import (
	"context"

	"github.com/haasonsaas/botkit/pkg/models"
)

// Directory looks up platform entities by id.
type Directory interface {
	FetchChannel(ctx context.Context, channelID string) (*models.Channel, error)
	FetchClan(ctx context.Context, clanID string) (*models.Clan, error)
	FetchUser(ctx context.Context, userID string) (*models.User, error)
	FetchMessage(ctx context.Context, channelID, messageID string) (*models.ChannelMessage, error)
}

// RoleLister lists the roles of a clan.
type RoleLister interface {
	ListRoles(ctx context.Context, clanID string) ([]models.Role, error)
}

// EventHandler receives one inbound event.
type EventHandler func(ctx context.Context, ev *models.Event)

// Transport is the realtime connection to the platform.
//
// OnEvent, OnError and OnDisconnect return a function that removes the
// subscription. Callbacks may be invoked from the transport's own goroutines.
type Transport interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	OnEvent(kind models.EventKind, fn EventHandler) (unsubscribe func())
	OnError(fn func(error)) (unsubscribe func())
	OnDisconnect(fn func(error)) (unsubscribe func())
}

// Sender performs outbound message operations.
type Sender interface {
	Send(ctx context.Context, msg *models.OutboundMessage) (*models.Receipt, error)
	Update(ctx context.Context, messageID string, msg *models.OutboundMessage) error
	Delete(ctx context.Context, channelID, messageID string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error
	CreateDM(ctx context.Context, userID string) (*models.Channel, error)
}

// TokenSender transfers platform tokens between users. Optional.
type TokenSender interface {
	SendToken(ctx context.Context, receiverID string, amount int64, note string) error
}

// Client bundles everything a platform adapter provides.
type Client interface {
	Directory
	RoleLister
	Transport
	Sender
}
