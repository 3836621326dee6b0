package services

import (
	"context"
	"time"

	"lovechat-backend/internal/models"
)

// AccountStore is implemented by repository.AccountRepository
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByCode(ctx context.Context, code string) (*models.Account, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdatePushToken(ctx context.Context, accountID string, pushToken *string) error
	ListSingles(ctx context.Context, excludeID string, limit int) ([]*models.Account, error)
	AddBlocked(ctx context.Context, accountID, targetID string) error
	Pair(ctx context.Context, requestID, fromID, toID string, start time.Time) error
	Unpair(ctx context.Context, accountID string) (string, error)
	SetPresence(ctx context.Context, accountID string, online bool, at time.Time) error
	ListOnline(ctx context.Context) ([]string, error)
}

// RequestStore is implemented by repository.RequestRepository
type RequestStore interface {
	Create(ctx context.Context, req *models.PairingRequest) error
	GetByID(ctx context.Context, id string) (*models.PairingRequest, error)
	ListInbound(ctx context.Context, toID string) ([]*models.PairingRequest, error)
	HasOutbound(ctx context.Context, fromID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ChannelStore is implemented by repository.ChannelRepository
type ChannelStore interface {
	Get(ctx context.Context, id string) (*models.Channel, error)
	SetWallpaper(ctx context.Context, id, url string) error
}

// MessageStore is implemented by repository.MessageRepository
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, channelID, id string) (*models.Message, error)
	ListByChannel(ctx context.Context, channelID string, limit int) ([]*models.Message, error)
	Delete(ctx context.Context, channelID, id string) error
	MarkRead(ctx context.Context, channelID, viewerID string) ([]string, error)
	MarkDelivered(ctx context.Context, channelID, id string) (bool, error)
	ToggleReaction(ctx context.Context, channelID, id, accountID, emoji string) (map[string]string, error)
}

// CallStore is implemented by repository.CallRepository
type CallStore interface {
	Create(ctx context.Context, signal *models.CallSignal) error
	GetByID(ctx context.Context, id string) (*models.CallSignal, error)
	Transition(ctx context.Context, id string, from, to models.CallStatus) error
	ListBetween(ctx context.Context, a, b string) ([]*models.CallSignal, error)
	DeleteBetween(ctx context.Context, a, b string) ([]*models.CallSignal, error)
	DeleteStale(ctx context.Context, before time.Time) ([]*models.CallSignal, error)
}

// MomentStore is implemented by repository.MomentRepository
type MomentStore interface {
	CreateMemory(ctx context.Context, m *models.Memory) error
	ListMemories(ctx context.Context, channelID string) ([]*models.Memory, error)
	DeleteMemory(ctx context.Context, channelID, id string) error
	CreateEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, channelID string) ([]*models.Event, error)
	DeleteEvent(ctx context.Context, channelID, id string) error
}

// NotificationStore is implemented by repository.NotificationRepository
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, toID string, limit int) ([]*models.Notification, error)
	MarkAllRead(ctx context.Context, toID string) (int64, error)
}

// SignalStore is implemented by repository.SignalRepository
type SignalStore interface {
	TouchPresence(ctx context.Context, accountID string, ttl time.Duration) error
	ClearPresence(ctx context.Context, accountID string) error
	HasPresence(ctx context.Context, accountID string) (bool, error)
	SetTyping(ctx context.Context, channelID, accountID string, typing bool, ttl time.Duration) error
	TypingFlags(ctx context.Context, channelID string) (map[string]bool, error)
}

// Notifier delivers notifications without blocking or failing the caller
type Notifier interface {
	Notify(ctx context.Context, toID, fromID string, kind models.NotificationKind, content string)
}
