package models

import "time"

// RelationshipStatus is the pairing state of an account
type RelationshipStatus string

const (
	StatusSingle  RelationshipStatus = "single"
	StatusPending RelationshipStatus = "pending"
	StatusTaken   RelationshipStatus = "taken"
)

// Account represents a user account and its relationship state.
// Status taken holds exactly when PartnerID is set and the partner points back.
type Account struct {
	ID                string             `json:"id"`
	Code              string             `json:"code"`
	FirstName         string             `json:"first_name"`
	LastName          string             `json:"last_name"`
	PhotoURL          string             `json:"photo_url,omitempty"`
	Token             string             `json:"token,omitempty"`
	PushToken         *string            `json:"push_token,omitempty"`
	Status            RelationshipStatus `json:"status"`
	PartnerID         *string            `json:"partner_id,omitempty"`
	RelationshipStart *time.Time         `json:"relationship_start,omitempty"`
	Blocked           []string           `json:"blocked,omitempty"`
	IsOnline          bool               `json:"is_online"`
	LastSeen          *time.Time         `json:"last_seen,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// FullName returns the display name
func (a *Account) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// HasBlocked reports whether this account blocked the other one
func (a *Account) HasBlocked(accountID string) bool {
	for _, id := range a.Blocked {
		if id == accountID {
			return true
		}
	}
	return false
}

// Partner returns the partner id or an empty string
func (a *Account) Partner() string {
	if a.PartnerID == nil {
		return ""
	}
	return *a.PartnerID
}

// RequestStatus is the lifecycle of a pairing request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestResolved RequestStatus = "resolved"
)

// PairingRequest is a directional relationship proposal
type PairingRequest struct {
	ID        string        `json:"id"`
	FromID    string        `json:"from"`
	FromName  string        `json:"from_name"`
	ToID      string        `json:"to"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Channel is the per-pair container keyed by the canonical pair id
type Channel struct {
	ID        string          `json:"id"`
	Wallpaper string          `json:"wallpaper,omitempty"`
	Typing    map[string]bool `json:"typing,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsTyping reads the typing flag of one member
func (c *Channel) IsTyping(accountID string) bool {
	return c.Typing[accountID]
}

// MessageStatus is the delivery state of a message
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Rank orders statuses so transitions only move forward
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

// MediaKind classifies a message attachment
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Valid reports whether the kind is known
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaAudio, MediaVideo:
		return true
	}
	return false
}

// Message is one entry of a channel log
type Message struct {
	ID        string            `json:"id"`
	ChannelID string            `json:"channel_id"`
	SenderID  string            `json:"sender_id"`
	Text      string            `json:"text,omitempty"`
	MediaRef  string            `json:"media_ref,omitempty"`
	MediaKind MediaKind         `json:"media_kind,omitempty"`
	Status    MessageStatus     `json:"status"`
	Reactions map[string]string `json:"reactions,omitempty"`
	Seq       int64             `json:"seq"`
	CreatedAt time.Time         `json:"created_at"`
}

// CallKind is the media type of a call
type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// CallStatus is the handshake state of a call signal
type CallStatus string

const (
	CallCalling  CallStatus = "calling"
	CallAccepted CallStatus = "accepted"
)

// CallSignal is one side of a call handshake
type CallSignal struct {
	ID        string     `json:"id"`
	FromID    string     `json:"from"`
	ToID      string     `json:"to"`
	Kind      CallKind   `json:"kind"`
	Status    CallStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Memory is a shared gallery item
type Memory struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	ImageURL  string    `json:"image"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType classifies calendar entries
type EventType string

const (
	EventDate        EventType = "date"
	EventAnniversary EventType = "anniversary"
	EventTrip        EventType = "trip"
	EventOther       EventType = "other"
)

// Event is a shared calendar entry
type Event struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Type      EventType `json:"type"`
	Location  string    `json:"location,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKind classifies notifications
type NotificationKind string

const (
	NotifyRequest NotificationKind = "request"
	NotifySystem  NotificationKind = "system"
	NotifyCall    NotificationKind = "call"
)

// Notification is an inbox entry for an account
type Notification struct {
	ID        string           `json:"id"`
	ToID      string           `json:"to"`
	FromID    string           `json:"from,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Content   string           `json:"content"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
