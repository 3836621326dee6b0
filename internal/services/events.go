package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Event types carried on the bus and over WebSocket
const (
	EventError            = "error"
	EventPairStatus       = "pair_status"
	EventPairRequest      = "pair_request"
	EventPairCreated      = "pair_created"
	EventPairRejected     = "pair_rejected"
	EventPairDeleted      = "pair_deleted"
	EventPresence         = "presence"
	EventTyping           = "typing"
	EventMessageNew       = "message_new"
	EventMessageDeleted   = "message_deleted"
	EventMessageReaction  = "message_reaction"
	EventMessagesRead     = "messages_read"
	EventMessageDelivered = "message_delivered"
	EventChannelSnapshot  = "channel_snapshot"
	EventChannelUpdated   = "channel_updated"
	EventCallIncoming     = "call_incoming"
	EventCallAccepted     = "call_accepted"
	EventCallEnded        = "call_ended"
	EventMemoryAdded      = "memory_added"
	EventMemoryDeleted    = "memory_deleted"
	EventEventAdded       = "event_added"
	EventEventDeleted     = "event_deleted"
	EventNotification     = "notification"

	// inbound only
	EventHeartbeat    = "heartbeat"
	EventViewChannel  = "view_channel"
	EventLeaveChannel = "leave_channel"
	EventCallStart    = "call_start"
	EventCallAnswer   = "call_answer"
	EventCallReject   = "call_reject"
	EventCallEnd      = "call_end"
)

// WSMessage represents a WebSocket message; it is also the bus payload
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	ChannelID string      `json:"channel_id,omitempty"`
	AccountID string      `json:"account_id,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
	CallID    string      `json:"call_id,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Typing    *bool       `json:"typing,omitempty"`
	Online    *bool       `json:"online,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Publisher fans an event out to one account's connections
type Publisher interface {
	Publish(ctx context.Context, accountID string, msg WSMessage) error
}

// publish sends msg to every account; failures are logged, never returned
func publish(ctx context.Context, pub Publisher, msg WSMessage, accountIDs ...string) {
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		if err := pub.Publish(ctx, id, msg); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", id).
				Str("type", msg.Type).
				Msg("Failed to publish event")
		}
	}
}
