// Package memory is an in-process platform. It backs tests and the
// `serve --platform memory` mode, where events are injected locally.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/pkg/models"
)

// Platform implements platform.Client and platform.TokenSender in memory.
// Every method call is counted by name.
type Platform struct {
	platform.Hub

	mu sync.Mutex

	channels map[string]*models.Channel
	clans    map[string]*models.Clan
	users    map[string]*models.User
	messages map[string]*models.ChannelMessage
	roles    map[string][]models.Role

	connected  bool
	connectErr []error
	sendErr    []error
	rolesErr   error

	calls     map[string]int
	sent      []models.OutboundMessage
	updates   map[string]models.OutboundMessage
	deleted   []string
	reactions map[string][]string
	tokens    []TokenTransfer

	now func() time.Time
}

// TokenTransfer records one SendToken call.
type TokenTransfer struct {
	ReceiverID string
	Amount     int64
	Note       string
}

// New creates an empty platform.
func New() *Platform {
	return &Platform{
		channels:  make(map[string]*models.Channel),
		clans:     make(map[string]*models.Clan),
		users:     make(map[string]*models.User),
		messages:  make(map[string]*models.ChannelMessage),
		roles:     make(map[string][]models.Role),
		calls:     make(map[string]int),
		updates:   make(map[string]models.OutboundMessage),
		reactions: make(map[string][]string),
		now:       time.Now,
	}
}

var _ platform.Client = (*Platform)(nil)
var _ platform.TokenSender = (*Platform)(nil)

func messageKey(channelID, messageID string) string {
	return channelID + "/" + messageID
}

// AddChannel seeds a channel.
func (p *Platform) AddChannel(ch models.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[ch.ID] = &ch
}

// AddClan seeds a clan.
func (p *Platform) AddClan(clan models.Clan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clans[clan.ID] = &clan
}

// AddUser seeds a user.
func (p *Platform) AddUser(u models.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.ID] = &u
}

// AddMessage seeds a stored message.
func (p *Platform) AddMessage(msg models.ChannelMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[messageKey(msg.ChannelID, msg.ID)] = &msg
}

// SetRoles seeds the roles of a clan.
func (p *Platform) SetRoles(clanID string, roles ...models.Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[clanID] = roles
}

// FailRoles makes ListRoles return err until called again with nil.
func (p *Platform) FailRoles(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolesErr = err
}

// FailConnect queues errors returned by successive Connect calls.
func (p *Platform) FailConnect(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErr = append(p.connectErr, errs...)
}

// FailSend queues errors returned by successive Send calls.
func (p *Platform) FailSend(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = append(p.sendErr, errs...)
}

// Calls returns how many times the named method was called.
func (p *Platform) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// Sent returns a copy of every message passed to Send.
func (p *Platform) Sent() []models.OutboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OutboundMessage(nil), p.sent...)
}

// Updated returns the last update for a message id.
func (p *Platform) Updated(messageID string) (models.OutboundMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.updates[messageID]
	return msg, ok
}

// Reactions returns the reactions currently on a message.
func (p *Platform) Reactions(channelID, messageID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.reactions[messageKey(channelID, messageID)]...)
}

// Tokens returns every recorded token transfer.
func (p *Platform) Tokens() []TokenTransfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TokenTransfer(nil), p.tokens...)
}

// Connected reports whether Connect succeeded and Close has not been called.
func (p *Platform) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Subscribers returns the number of live event subscriptions.
func (p *Platform) Subscribers() int {
	return p.Len()
}

func (p *Platform) count(method string) {
	p.calls[method]++
}

// Directory

func (p *Platform) FetchChannel(_ context.Context, channelID string) (*models.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("FetchChannel")
	ch, ok := p.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound("channel not found", nil).WithContext("channel_id", channelID)
	}
	out := *ch
	return &out, nil
}

func (p *Platform) FetchClan(_ context.Context, clanID string) (*models.Clan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("FetchClan")
	clan, ok := p.clans[clanID]
	if !ok {
		return nil, platform.ErrNotFound("clan not found", nil).WithContext("clan_id", clanID)
	}
	out := *clan
	return &out, nil
}

func (p *Platform) FetchUser(_ context.Context, userID string) (*models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("FetchUser")
	u, ok := p.users[userID]
	if !ok {
		return nil, platform.ErrNotFound("user not found", nil).WithContext("user_id", userID)
	}
	out := *u
	return &out, nil
}

func (p *Platform) FetchMessage(_ context.Context, channelID, messageID string) (*models.ChannelMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("FetchMessage")
	msg, ok := p.messages[messageKey(channelID, messageID)]
	if !ok {
		return nil, platform.ErrNotFound("message not found", nil).WithContext("message_id", messageID)
	}
	out := *msg
	return &out, nil
}

func (p *Platform) ListRoles(_ context.Context, clanID string) ([]models.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("ListRoles")
	if p.rolesErr != nil {
		return nil, p.rolesErr
	}
	return append([]models.Role(nil), p.roles[clanID]...), nil
}

// Transport

func (p *Platform) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("Connect")
	if len(p.connectErr) > 0 {
		err := p.connectErr[0]
		p.connectErr = p.connectErr[1:]
		if err != nil {
			return err
		}
	}
	p.connected = true
	return nil
}

func (p *Platform) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("Close")
	p.connected = false
	return nil
}

// Emit delivers ev to every subscriber of its kind on the calling
// goroutine.
func (p *Platform) Emit(ctx context.Context, ev *models.Event) {
	p.Publish(ctx, ev)
}

// Drop simulates a lost connection.
func (p *Platform) Drop(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.PublishDisconnect(err)
}

// RaiseError simulates a transport error.
func (p *Platform) RaiseError(err error) {
	p.PublishError(err)
}

// Sender

func (p *Platform) Send(_ context.Context, msg *models.OutboundMessage) (*models.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("Send")
	if msg.ChannelID == "" {
		return nil, platform.ErrInvalidInput("channel id is required", nil)
	}
	if len(p.sendErr) > 0 {
		err := p.sendErr[0]
		p.sendErr = p.sendErr[1:]
		if err != nil {
			return nil, err
		}
	}
	p.sent = append(p.sent, *msg)
	receipt := &models.Receipt{
		MessageID: uuid.NewString(),
		ChannelID: msg.ChannelID,
		CreatedAt: p.now(),
	}
	p.messages[messageKey(msg.ChannelID, receipt.MessageID)] = &models.ChannelMessage{
		ID:        receipt.MessageID,
		ChannelID: msg.ChannelID,
		ClanID:    msg.ClanID,
		Content:   msg.Content,
		Mentions:  msg.Mentions,
		CreatedAt: receipt.CreatedAt,
	}
	return receipt, nil
}

func (p *Platform) Update(_ context.Context, messageID string, msg *models.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("Update")
	if messageID == "" {
		return platform.ErrInvalidInput("message id is required", nil)
	}
	p.updates[messageID] = *msg
	if stored, ok := p.messages[messageKey(msg.ChannelID, messageID)]; ok {
		stored.Content = msg.Content
		stored.Mentions = msg.Mentions
	}
	return nil
}

func (p *Platform) Delete(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("Delete")
	key := messageKey(channelID, messageID)
	if _, ok := p.messages[key]; !ok {
		return platform.ErrNotFound("message not found", nil).WithContext("message_id", messageID)
	}
	delete(p.messages, key)
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *Platform) React(_ context.Context, channelID, messageID, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("React")
	key := messageKey(channelID, messageID)
	p.reactions[key] = append(p.reactions[key], emoji)
	return nil
}

func (p *Platform) RemoveReaction(_ context.Context, channelID, messageID, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("RemoveReaction")
	key := messageKey(channelID, messageID)
	kept := p.reactions[key][:0]
	for _, e := range p.reactions[key] {
		if e != emoji {
			kept = append(kept, e)
		}
	}
	p.reactions[key] = kept
	return nil
}

func (p *Platform) CreateDM(_ context.Context, userID string) (*models.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("CreateDM")
	u, ok := p.users[userID]
	if !ok {
		return nil, platform.ErrNotFound("user not found", nil).WithContext("user_id", userID)
	}
	if u.DMChannelID == "" {
		u.DMChannelID = fmt.Sprintf("dm-%s", userID)
	}
	ch := &models.Channel{ID: u.DMChannelID, Name: u.Label(), IsPrivate: true, IsDM: true}
	p.channels[ch.ID] = ch
	out := *ch
	return &out, nil
}

func (p *Platform) SendToken(_ context.Context, receiverID string, amount int64, note string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count("SendToken")
	if amount <= 0 {
		return platform.ErrInvalidInput("amount must be positive", nil)
	}
	p.tokens = append(p.tokens, TokenTransfer{ReceiverID: receiverID, Amount: amount, Note: note})
	return nil
}
