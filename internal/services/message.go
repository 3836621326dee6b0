package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/timeline"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultReaction is recorded when a react call carries no emoji
const DefaultReaction = "❤️"

// MessageService is the per-channel message pipeline
type MessageService struct {
	messages MessageStore
	bus      Publisher
	typing   *TypingSignaler
	limit    int
}

// NewMessageService creates a new message service. typing may be nil.
func NewMessageService(messages MessageStore, bus Publisher, typing *TypingSignaler, limit int) *MessageService {
	return &MessageService{
		messages: messages,
		bus:      bus,
		typing:   typing,
		limit:    limit,
	}
}

// SendMessageRequest is the message payload; text, media or both
type SendMessageRequest struct {
	Text      string           `json:"text"`
	MediaRef  string           `json:"media_ref"`
	MediaKind models.MediaKind `json:"media_kind"`
}

// ReactRequest carries an optional emoji
type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// Send appends a message with status sent. Delivery is asynchronous over the
// bus; the caller never waits for the partner.
func (s *MessageService) Send(ctx context.Context, pc PairContext, req SendMessageRequest) (*models.Message, error) {
	text := strings.TrimSpace(req.Text)
	mediaRef := strings.TrimSpace(req.MediaRef)
	if text == "" && mediaRef == "" {
		return nil, ErrEmptyMessage
	}

	kind := req.MediaKind
	if mediaRef == "" {
		kind = ""
	} else if !kind.Valid() {
		return nil, fmt.Errorf("unknown media kind %q: %w", kind, ErrInvalidInput)
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		ChannelID: pc.ChannelID,
		SenderID:  pc.AccountID,
		Text:      text,
		MediaRef:  mediaRef,
		MediaKind: kind,
		Status:    models.MessageSent,
		Reactions: map[string]string{},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeError("failed to create message", err)
	}

	if s.typing != nil {
		s.typing.Stop(ctx, pc)
	}

	log.Debug().
		Str("channel_id", pc.ChannelID).
		Str("message_id", msg.ID).
		Msg("Message sent")

	publish(ctx, s.bus, WSMessage{
		Type:      EventMessageNew,
		Timestamp: msg.CreatedAt.UnixMilli(),
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		MessageID: msg.ID,
		Data:      msg,
	}, pc.Members()...)

	return msg, nil
}

// List returns the latest messages in render order
func (s *MessageService) List(ctx context.Context, pc PairContext) ([]*models.Message, error) {
	msgs, err := s.messages.ListByChannel(ctx, pc.ChannelID, s.limit)
	if err != nil {
		return nil, storeError("failed to list messages", err)
	}
	timeline.Sort(msgs)
	return msgs, nil
}

// Timeline returns List with day markers for loc
func (s *MessageService) Timeline(ctx context.Context, pc PairContext, loc *time.Location) ([]timeline.Entry, error) {
	msgs, err := s.List(ctx, pc)
	if err != nil {
		return nil, err
	}
	return timeline.Build(msgs, loc), nil
}

// Observe marks every unread message from the partner as read. It runs as a
// side effect of delivering messages to an active channel view.
func (s *MessageService) Observe(ctx context.Context, pc PairContext) ([]string, error) {
	ids, err := s.messages.MarkRead(ctx, pc.ChannelID, pc.AccountID)
	if err != nil {
		return nil, storeError("failed to mark messages read", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventMessagesRead,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		Data:      ids,
	}, pc.Members()...)
	return ids, nil
}

// MarkDelivered moves one message from sent to delivered. Later statuses are
// left alone.
func (s *MessageService) MarkDelivered(ctx context.Context, pc PairContext, messageID string) error {
	changed, err := s.messages.MarkDelivered(ctx, pc.ChannelID, messageID)
	if err != nil {
		return storeError("failed to mark message delivered", err)
	}
	if !changed {
		return nil
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventMessageDelivered,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		MessageID: messageID,
	}, pc.Members()...)
	return nil
}

// Delete removes a message permanently. Only its sender may delete it.
func (s *MessageService) Delete(ctx context.Context, pc PairContext, messageID string) error {
	msg, err := s.messages.GetByID(ctx, pc.ChannelID, messageID)
	if err != nil {
		return storeError("failed to get message", err)
	}
	if msg.SenderID != pc.AccountID {
		return fmt.Errorf("only the sender may delete a message: %w", ErrUnauthorized)
	}

	if err := s.messages.Delete(ctx, pc.ChannelID, messageID); err != nil {
		return storeError("failed to delete message", err)
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventMessageDeleted,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		MessageID: messageID,
	}, pc.Members()...)
	return nil
}

// React toggles the caller's reaction: set when absent, cleared when present
func (s *MessageService) React(ctx context.Context, pc PairContext, messageID, emoji string) (map[string]string, error) {
	if emoji = strings.TrimSpace(emoji); emoji == "" {
		emoji = DefaultReaction
	}

	reactions, err := s.messages.ToggleReaction(ctx, pc.ChannelID, messageID, pc.AccountID, emoji)
	if err != nil {
		return nil, storeError("failed to toggle reaction", err)
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventMessageReaction,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		MessageID: messageID,
		Data:      reactions,
	}, pc.Members()...)
	return reactions, nil
}
