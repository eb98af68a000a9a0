package gateway

import (
	"encoding/json"
	"fmt"
)

const (
	protocolVersion = 1
	maxPayloadBytes = 1 << 20
)

// Frame types.
const (
	frameRequest  = "req"
	frameResponse = "res"
	frameEvent    = "event"
)

// frame is the JSON envelope exchanged with the gateway.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *frameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type connectParams struct {
	MinProtocol int    `json:"minProtocol"`
	MaxProtocol int    `json:"maxProtocol"`
	Token       string `json:"token"`
	ClientID    string `json:"clientId,omitempty"`
}

type helloPayload struct {
	Protocol int    `json:"protocol"`
	BotID    string `json:"botId,omitempty"`
}

// Gateway method names.
const (
	methodConnect        = "connect"
	methodChannelGet     = "channel.get"
	methodClanGet        = "clan.get"
	methodUserGet        = "user.get"
	methodMessageGet     = "message.get"
	methodRolesList      = "roles.list"
	methodMessageSend    = "message.send"
	methodMessageUpdate  = "message.update"
	methodMessageDelete  = "message.delete"
	methodReactionAdd    = "reaction.add"
	methodReactionRemove = "reaction.remove"
	methodDMCreate       = "dm.create"
	methodTokenSend      = "token.send"
)

type idParams struct {
	ID string `json:"id"`
}

type messageParams struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji,omitempty"`
}

type updateParams struct {
	MessageID string `json:"message_id"`
	Message   any    `json:"message"`
}

type tokenParams struct {
	ReceiverID string `json:"receiver_id"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
}
