package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const busTopicPrefix = "events:"

// RedisBus is the low-latency pub/sub path: one topic per account, so every
// server instance holding a connection for that account receives the event.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus creates a new Redis-backed event bus
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

// Publish sends an event to an account's topic
func (b *RedisBus) Publish(ctx context.Context, accountID string, msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, busTopicPrefix+accountID, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Listen delivers every account event to fn until ctx is cancelled
func (b *RedisBus) Listen(ctx context.Context, fn func(accountID string, msg WSMessage)) error {
	pubsub := b.rdb.PSubscribe(ctx, busTopicPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}
	log.Info().Msg("Event bus subscription started")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Event bus subscription stopped")
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("event bus channel closed")
			}
			accountID := strings.TrimPrefix(m.Channel, busTopicPrefix)
			var msg WSMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.Error().Err(err).Str("topic", m.Channel).Msg("Failed to decode bus event")
				continue
			}
			fn(accountID, msg)
		}
	}
}

// LocalBus is an in-process bus for single-instance runs and tests. It keeps a
// copy of every published event.
type LocalBus struct {
	mu        sync.Mutex
	listeners []func(accountID string, msg WSMessage)
	history   []Delivery
}

// Delivery is one event addressed to one account
type Delivery struct {
	AccountID string
	Msg       WSMessage
}

// NewLocalBus creates an empty in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Publish records msg and hands it to every listener synchronously
func (b *LocalBus) Publish(_ context.Context, accountID string, msg WSMessage) error {
	b.mu.Lock()
	b.history = append(b.history, Delivery{AccountID: accountID, Msg: msg})
	listeners := append([]func(string, WSMessage){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(accountID, msg)
	}
	return nil
}

// Subscribe registers fn and returns a function that removes it
func (b *LocalBus) Subscribe(fn func(accountID string, msg WSMessage)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = append(b.listeners, fn)
	idx := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.listeners[idx] = func(string, WSMessage) {}
	}
}

// Listen registers fn and blocks until ctx is cancelled
func (b *LocalBus) Listen(ctx context.Context, fn func(accountID string, msg WSMessage)) error {
	unsubscribe := b.Subscribe(fn)
	<-ctx.Done()
	unsubscribe()
	return nil
}

// Sent returns recorded events of one type addressed to accountID
func (b *LocalBus) Sent(accountID, eventType string) []WSMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []WSMessage
	for _, d := range b.history {
		if d.AccountID == accountID && d.Msg.Type == eventType {
			out = append(out, d.Msg)
		}
	}
	return out
}

// Reset drops the recorded history
func (b *LocalBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
