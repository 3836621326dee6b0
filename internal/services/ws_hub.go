package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Listener is implemented by RedisBus and LocalBus
type Listener interface {
	Listen(ctx context.Context, fn func(accountID string, msg WSMessage)) error
}

// Client is one live WebSocket session. The hub never writes to the socket
// itself; the session's writer drains Send.
type Client struct {
	AccountID string

	send      chan WSMessage
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client with a bounded outbound queue
func NewClient(accountID string, buffer int) *Client {
	return &Client{
		AccountID: accountID,
		send:      make(chan WSMessage, buffer),
		done:      make(chan struct{}),
	}
}

// Send is the outbound queue
func (c *Client) Send() <-chan WSMessage {
	return c.send
}

// Done is closed when the client was replaced or unregistered
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Queue adds msg to the outbound queue without blocking. A full queue drops
// the event.
func (c *Client) Queue(msg WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		log.Warn().Str("user_id", c.AccountID).Str("type", msg.Type).Msg("WebSocket queue full, dropping event")
		return false
	}
}

// Close signals the writer to stop; safe to call more than once
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// WSHub tracks the local WebSocket session of each account and hands bus
// events to it.
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[string]*Client),
	}
}

// Register registers a session; an existing session of the account is closed
func (h *WSHub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[c.AccountID]; ok {
		existing.Close()
	}
	h.clients[c.AccountID] = c

	log.Info().Str("user_id", c.AccountID).Msg("WebSocket connection registered")
}

// Unregister removes c. It reports false when a newer session already
// replaced it.
func (h *WSHub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.Close()
	if h.clients[c.AccountID] != c {
		return false
	}
	delete(h.clients, c.AccountID)

	log.Info().Str("user_id", c.AccountID).Msg("WebSocket connection unregistered")
	return true
}

// Deliver queues msg for the account's session
func (h *WSHub) Deliver(accountID string, msg WSMessage) bool {
	h.mu.RLock()
	c, ok := h.clients[accountID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	return c.Queue(msg)
}

// IsOnline checks if an account has a session on this instance
func (h *WSHub) IsOnline(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[accountID]
	return ok
}

// Run feeds bus events into local sessions until ctx is cancelled
func (h *WSHub) Run(ctx context.Context, bus Listener) error {
	return bus.Listen(ctx, func(accountID string, msg WSMessage) {
		h.Deliver(accountID, msg)
	})
}
