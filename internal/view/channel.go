// Package view holds client-side state for a paired channel: an optimistic
// message cache reconciled against store snapshots, and the local call state.
// UI layers read immutable snapshots and never touch the store directly.
package view

import (
	"fmt"
	"sync"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"
	"lovechat-backend/internal/timeline"
)

// StatusPending marks an optimistic message the store has not confirmed yet
const StatusPending models.MessageStatus = "pending"

type pendingSend struct {
	draft   services.SendMessageRequest
	message *models.Message
}

// ChannelSnapshot is what the UI renders
type ChannelSnapshot struct {
	ChannelID  string
	Entries    []timeline.Entry
	Pending    int
	PeerTyping bool
	Wallpaper  string
}

// ChannelView caches one channel. Store data always overwrites local data.
type ChannelView struct {
	mu sync.Mutex

	pc       services.PairContext
	loc      *time.Location
	now      func() time.Time
	localSeq int64

	messages   map[string]*models.Message
	pending    map[string]*pendingSend
	peerTyping bool
	wallpaper  string
}

// NewChannelView creates an empty view; loc decides day boundaries
func NewChannelView(pc services.PairContext, loc *time.Location) *ChannelView {
	return &ChannelView{
		pc:       pc,
		loc:      loc,
		now:      time.Now,
		messages: make(map[string]*models.Message),
		pending:  make(map[string]*pendingSend),
	}
}

// Send shows the draft immediately and returns its local id
func (v *ChannelView) Send(draft services.SendMessageRequest) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.localSeq++
	localID := fmt.Sprintf("local-%d", v.localSeq)
	v.pending[localID] = &pendingSend{
		draft: draft,
		message: &models.Message{
			ID:        localID,
			ChannelID: v.pc.ChannelID,
			SenderID:  v.pc.AccountID,
			Text:      draft.Text,
			MediaRef:  draft.MediaRef,
			MediaKind: draft.MediaKind,
			Status:    StatusPending,
			Seq:       1<<62 + v.localSeq,
			CreatedAt: v.now(),
		},
	}
	return localID
}

// Confirm swaps the optimistic entry for the stored message
func (v *ChannelView) Confirm(localID string, stored *models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.pending, localID)
	if stored != nil {
		v.messages[stored.ID] = stored
	}
}

// Rollback drops the optimistic entry and hands the draft back to the composer
func (v *ChannelView) Rollback(localID string) (services.SendMessageRequest, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.pending[localID]
	if !ok {
		return services.SendMessageRequest{}, false
	}
	delete(v.pending, localID)
	return p.draft, true
}

// ApplySnapshot replaces every confirmed message with the store's list
func (v *ChannelView) ApplySnapshot(msgs []*models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.messages = make(map[string]*models.Message, len(msgs))
	for _, m := range msgs {
		v.messages[m.ID] = m
	}
}

// ApplyMessage upserts one stored message
func (v *ChannelView) ApplyMessage(m *models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages[m.ID] = m
}

// Remove drops a stored message
func (v *ChannelView) Remove(messageID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.messages, messageID)
}

// SetWallpaper records the channel wallpaper
func (v *ChannelView) SetWallpaper(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wallpaper = url
}

// Apply folds a bus event into the view. It returns false when the event
// carries nothing the view can apply locally and the caller should refetch.
func (v *ChannelView) Apply(msg services.WSMessage) bool {
	if msg.ChannelID != "" && msg.ChannelID != v.pc.ChannelID {
		return true
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch msg.Type {
	case services.EventTyping:
		if msg.AccountID == v.pc.PartnerID && msg.Typing != nil {
			v.peerTyping = *msg.Typing
		}
		return true
	case services.EventMessageDeleted:
		delete(v.messages, msg.MessageID)
		return true
	case services.EventMessageDelivered:
		if m, ok := v.messages[msg.MessageID]; ok && m.Status.Rank() < models.MessageDelivered.Rank() {
			updated := *m
			updated.Status = models.MessageDelivered
			v.messages[msg.MessageID] = &updated
		}
		return true
	case services.EventPresence, services.EventNotification:
		return true
	}
	return false
}

// Snapshot returns the ordered timeline including optimistic sends
func (v *ChannelView) Snapshot() ChannelSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	all := make([]*models.Message, 0, len(v.messages)+len(v.pending))
	for _, m := range v.messages {
		all = append(all, m)
	}
	for _, p := range v.pending {
		all = append(all, p.message)
	}

	return ChannelSnapshot{
		ChannelID:  v.pc.ChannelID,
		Entries:    timeline.Build(all, v.loc),
		Pending:    len(v.pending),
		PeerTyping: v.peerTyping,
		Wallpaper:  v.wallpaper,
	}
}
