package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const channelSeparator = "_"

// ResolveChannel derives the shared channel id of two accounts. It is
// commutative: both members of a pair always land on the same id.
func ResolveChannel(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, channelSeparator)
}

// PairContext identifies the caller, its partner and their channel. It is
// built once per request and passed to every channel-scoped operation.
type PairContext struct {
	AccountID string
	PartnerID string
	ChannelID string
}

// NewPairContext builds the context for a pair
func NewPairContext(accountID, partnerID string) PairContext {
	return PairContext{
		AccountID: accountID,
		PartnerID: partnerID,
		ChannelID: ResolveChannel(accountID, partnerID),
	}
}

// Members returns both account ids
func (pc PairContext) Members() []string {
	return []string{pc.AccountID, pc.PartnerID}
}

// ChannelSnapshot is the channel state a client needs to render
type ChannelSnapshot struct {
	ChannelID   string          `json:"channel_id"`
	Wallpaper   string          `json:"wallpaper,omitempty"`
	Typing      map[string]bool `json:"typing"`
	PeerTyping  bool            `json:"peer_typing"`
	PeerOnline  bool            `json:"peer_online"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// ChannelService handles the channel config document
type ChannelService struct {
	channels ChannelStore
	signals  SignalStore
	bus      Publisher
}

// NewChannelService creates a new channel service
func NewChannelService(channels ChannelStore, signals SignalStore, bus Publisher) *ChannelService {
	return &ChannelService{
		channels: channels,
		signals:  signals,
		bus:      bus,
	}
}

// Snapshot returns the channel config together with typing flags and the
// partner's presence lease. Signal reads are best-effort.
func (s *ChannelService) Snapshot(ctx context.Context, pc PairContext) (*ChannelSnapshot, error) {
	ch, err := s.channels.Get(ctx, pc.ChannelID)
	if err != nil {
		return nil, storeError("failed to get channel", err)
	}

	snap := &ChannelSnapshot{
		ChannelID:   pc.ChannelID,
		Wallpaper:   ch.Wallpaper,
		Typing:      map[string]bool{},
		RefreshedAt: time.Now(),
	}

	if flags, err := s.signals.TypingFlags(ctx, pc.ChannelID); err != nil {
		log.Warn().Err(err).Str("channel_id", pc.ChannelID).Msg("Failed to read typing flags")
	} else {
		snap.Typing = flags
		snap.PeerTyping = flags[pc.PartnerID]
	}

	if online, err := s.signals.HasPresence(ctx, pc.PartnerID); err != nil {
		log.Warn().Err(err).Str("user_id", pc.PartnerID).Msg("Failed to read presence lease")
	} else {
		snap.PeerOnline = online
	}

	return snap, nil
}

// SetWallpaper merge-writes the wallpaper field; last write wins
func (s *ChannelService) SetWallpaper(ctx context.Context, pc PairContext, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("wallpaper url is required: %w", ErrInvalidInput)
	}
	if err := s.channels.SetWallpaper(ctx, pc.ChannelID, url); err != nil {
		return storeError("failed to set wallpaper", err)
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventChannelUpdated,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		Data:      map[string]string{"wallpaper": url},
	}, pc.Members()...)
	return nil
}
