package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lovechat-backend/internal/config"
	"lovechat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

const (
	notifyTimeout     = 10 * time.Second
	notificationLimit = 100
)

// Pusher is implemented by *apns2.Client
type Pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// NewAPNsClient builds a token-based APNs client, or nil when push is not
// configured.
func NewAPNsClient(cfg config.APNsConfig) (*apns2.Client, error) {
	if cfg.KeyFile == "" {
		return nil, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

// NotificationService persists inbox entries, publishes them on the bus and
// pushes them to the device. Notify never blocks or fails the caller.
type NotificationService struct {
	notifications NotificationStore
	accounts      AccountStore
	bus           Publisher
	pusher        Pusher
	topic         string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewNotificationService creates a new notification service. pusher may be nil.
func NewNotificationService(
	notifications NotificationStore,
	accounts AccountStore,
	bus Publisher,
	pusher Pusher,
	topic string,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		accounts:      accounts,
		bus:           bus,
		pusher:        pusher,
		topic:         topic,
	}
}

// Notify delivers in the background; failures are logged and swallowed
func (s *NotificationService) Notify(ctx context.Context, toID, fromID string, kind models.NotificationKind, content string) {
	n := &models.Notification{
		ID:        uuid.New().String(),
		ToID:      toID,
		FromID:    fromID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Warn().Str("user_id", toID).Str("kind", string(kind)).Msg("Notification dropped after shutdown")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		s.deliver(ctx, n)
	}()
}

// Wait blocks until every in-flight notification finished
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// Close stops accepting notifications and waits for in-flight ones
func (s *NotificationService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	if err := s.notifications.Create(ctx, n); err != nil {
		log.Error().Err(err).Str("user_id", n.ToID).Msg("Failed to store notification")
		return
	}

	publish(ctx, s.bus, WSMessage{Type: EventNotification, AccountID: n.FromID, Message: n.Content, Data: n}, n.ToID)

	if s.pusher == nil {
		return
	}

	account, err := s.accounts.GetByID(ctx, n.ToID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", n.ToID).Msg("Failed to load push recipient")
		return
	}
	if account.PushToken == nil || *account.PushToken == "" {
		return
	}

	res, err := s.pusher.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: *account.PushToken,
		Topic:       s.topic,
		Payload: payload.NewPayload().
			AlertBody(n.Content).
			Sound("default").
			Custom("kind", string(n.Kind)),
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", n.ToID).Msg("Failed to send push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", n.ToID).
			Int("status", res.StatusCode).
			Str("reason", res.Reason).
			Msg("Push notification rejected")
	}
}

// List returns the newest notifications of an account
func (s *NotificationService) List(ctx context.Context, accountID string) ([]*models.Notification, error) {
	items, err := s.notifications.ListByRecipient(ctx, accountID, notificationLimit)
	if err != nil {
		return nil, storeError("failed to list notifications", err)
	}
	if items == nil {
		items = []*models.Notification{}
	}
	return items, nil
}

// MarkAllRead marks every notification of an account read
func (s *NotificationService) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, accountID)
	if err != nil {
		return 0, storeError("failed to mark notifications read", err)
	}
	return n, nil
}
