// Package gateway is a platform adapter for chat backends that expose a
// JSON-over-websocket gateway: events are pushed as frames and every
// directory lookup or outbound operation is a request/response pair on the
// same socket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/botkit/internal/platform"
	"github.com/haasonsaas/botkit/internal/ratelimit"
	"github.com/haasonsaas/botkit/internal/retry"
	"github.com/haasonsaas/botkit/pkg/models"
)

// Config holds configuration for the gateway client.
type Config struct {
	// URL is the websocket endpoint, e.g. wss://gateway.example.com/ws.
	URL   string
	Token string
	// ClientID identifies the bot to the gateway.
	ClientID string

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration

	// RateLimit throttles outbound requests (per second) per channel.
	RateLimit float64
	RateBurst int

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.URL == "" {
		return platform.ErrInvalidInput("gateway url is required", nil)
	}
	if c.Token == "" {
		return platform.ErrInvalidInput("gateway token is required", nil)
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.PongWait == 0 {
		c.PongWait = 45 * time.Second
	}
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.RateBurst == 0 {
		c.RateBurst = 20
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Client implements platform.Client and platform.TokenSender over a
// gateway websocket.
type Client struct {
	platform.Hub

	config  Config
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	botID  string

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *frame
}

var (
	_ platform.Client      = (*Client)(nil)
	_ platform.TokenSender = (*Client)(nil)
)

// New creates a gateway client. The socket is opened by Connect.
func New(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: config.RateLimit,
			BurstSize:         config.RateBurst,
			Enabled:           true,
		}),
		logger:  config.Logger.With("component", "gateway"),
		pending: make(map[string]chan *frame),
	}, nil
}

// BotID returns the bot user id announced in the handshake.
func (c *Client) BotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botID
}

// Connect dials the gateway and performs the handshake. Rejected
// credentials are reported as permanent errors.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.Token)
	conn, resp, err := c.config.Dialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return retry.Permanent(platform.ErrAuthentication("gateway rejected credentials", err))
		}
		return platform.ErrConnection("dial gateway", err).WithContext("url", c.config.URL)
	}
	conn.SetReadLimit(maxPayloadBytes)

	hello, err := c.handshake(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.botID = hello.BotID
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.done = make(chan struct{})
	go c.readLoop(c.ctx, conn, c.done)
	go c.pingLoop(c.ctx, conn)

	c.logger.Info("gateway connected", "url", c.config.URL, "bot_id", hello.BotID)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) (*helloPayload, error) {
	id := uuid.NewString()
	deadline := time.Now().Add(c.config.HandshakeTimeout)
	_ = conn.SetWriteDeadline(deadline) //nolint:errcheck
	err := conn.WriteJSON(frame{
		Type:   frameRequest,
		ID:     id,
		Method: methodConnect,
		Params: connectParams{
			MinProtocol: protocolVersion,
			MaxProtocol: protocolVersion,
			Token:       c.config.Token,
			ClientID:    c.config.ClientID,
		},
	})
	if err != nil {
		return nil, platform.ErrConnection("send handshake", err)
	}

	_ = conn.SetReadDeadline(deadline) //nolint:errcheck
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return nil, platform.ErrConnection("read handshake", err)
		}
		if f.Type != frameResponse || f.ID != id {
			continue
		}
		if f.OK == nil || !*f.OK {
			err := responseError(&f)
			if platform.CodeOf(err) == platform.ErrCodeAuthentication {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		var hello helloPayload
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, &hello); err != nil {
				return nil, platform.ErrConnection("decode handshake", err)
			}
		}
		return &hello, nil
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(c.config.PongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(conn, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("invalid gateway frame", "error", err)
			c.PublishError(platform.ErrInvalidInput("decode gateway frame", err))
			continue
		}

		switch f.Type {
		case frameResponse:
			c.resolve(&f)
		case frameEvent:
			ev, err := decodeEvent(&f)
			if err != nil {
				c.logger.Warn("invalid gateway event", "event", f.Event, "error", err)
				c.PublishError(err)
				continue
			}
			c.Publish(ctx, ev)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("gateway ping failed", "error", err)
				return
			}
		}
	}
}

// connectionLost reports an unexpected read failure. Failures on a socket
// that Close already released are ignored.
func (c *Client) connectionLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.cancel()
	}
	c.mu.Unlock()
	if !current {
		return
	}
	_ = conn.Close()
	c.failPending()

	c.logger.Warn("gateway connection lost", "error", err)
	c.PublishDisconnect(platform.ErrConnection("gateway connection lost", err))
}

// Close closes the socket. It is safe to call when not connected.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteWait)) //nolint:errcheck
	err := conn.Close()
	c.failPending()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("close timeout, read loop still running")
	}
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return platform.ErrConnection("close gateway", err)
	}
	c.logger.Info("gateway closed")
	return nil
}

func (c *Client) resolve(f *frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.pendingMu.Unlock()
	if ok {
		ch <- f
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends a request and decodes the response payload into out.
func (c *Client) call(ctx context.Context, key, method string, params, out any) error {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return platform.ErrRateLimit("rate limit wait cancelled", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return platform.ErrUnavailable("gateway not connected", nil)
	}

	id := uuid.NewString()
	ch := make(chan *frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)) //nolint:errcheck
	err := conn.WriteJSON(frame{Type: frameRequest, ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return platform.ErrConnection("write request", err).WithContext("method", method)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		forget()
		return platform.ErrUnavailable("gateway request timed out", ctx.Err()).WithContext("method", method)
	case resp, ok := <-ch:
		if !ok {
			return platform.ErrConnection("gateway connection lost", nil).WithContext("method", method)
		}
		if resp.OK == nil || !*resp.OK {
			return fmt.Errorf("%s: %w", method, responseError(resp))
		}
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return platform.ErrInvalidInput("decode response", err).WithContext("method", method)
			}
		}
		return nil
	}
}

// responseError maps a gateway error frame onto a platform error.
func responseError(f *frame) error {
	fe := f.Error
	if fe == nil {
		fe = &frameError{Code: "unknown", Message: "request failed"}
	}
	var code platform.ErrorCode
	switch fe.Code {
	case "unauthorized", "forbidden":
		code = platform.ErrCodeAuthentication
	case "not_found":
		code = platform.ErrCodeNotFound
	case "rate_limited":
		code = platform.ErrCodeRateLimit
	case "invalid_request", "invalid_frame":
		code = platform.ErrCodeInvalidInput
	case "unsupported":
		code = platform.ErrCodeUnsupported
	case "unavailable":
		code = platform.ErrCodeUnavailable
	default:
		code = platform.ErrCodeInternal
	}
	return platform.NewError(code, fe.Message, fe)
}

// decodeEvent builds an Event from an event frame. Envelope ids missing from
// the payload are filled from the message or click it carries.
func decodeEvent(f *frame) (*models.Event, error) {
	if f.Event == "" {
		return nil, platform.ErrInvalidInput("event frame without a name", nil)
	}
	ev := &models.Event{}
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, ev); err != nil {
			return nil, platform.ErrInvalidInput("decode event payload", err).WithContext("event", f.Event)
		}
	}
	ev.Kind = models.EventKind(f.Event)

	if m := ev.Message; m != nil {
		fill(&ev.ClanID, m.ClanID)
		fill(&ev.ChannelID, m.ChannelID)
		fill(&ev.SenderID, m.SenderID)
	}
	if click := ev.Click; click != nil {
		fill(&ev.ClanID, click.ClanID)
		fill(&ev.ChannelID, click.ChannelID)
		fill(&ev.UserID, click.UserID)
	}
	return ev, nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
