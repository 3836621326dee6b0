package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Presence is what a partner sees
type Presence struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// PresenceService keeps is_online/last_seen and a Redis lease per account.
// Every write is best-effort: failures are logged and never returned.
type PresenceService struct {
	accounts AccountStore
	signals  SignalStore
	pairs    *PairService
	bus      Publisher
	ttl      time.Duration
	now      func() time.Time
}

// NewPresenceService creates a new presence service
func NewPresenceService(accounts AccountStore, signals SignalStore, pairs *PairService, bus Publisher, ttl time.Duration) *PresenceService {
	return &PresenceService{
		accounts: accounts,
		signals:  signals,
		pairs:    pairs,
		bus:      bus,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start marks the account online and takes a lease
func (s *PresenceService) Start(ctx context.Context, accountID string) {
	s.set(ctx, accountID, true)
}

// Heartbeat extends the lease. An account the reaper already marked offline
// comes back online.
func (s *PresenceService) Heartbeat(ctx context.Context, accountID string) {
	alive, err := s.signals.HasPresence(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", accountID).Msg("Failed to read presence lease")
	}
	if !alive {
		s.set(ctx, accountID, true)
		return
	}
	if err := s.signals.TouchPresence(ctx, accountID, s.ttl); err != nil {
		log.Warn().Err(err).Str("user_id", accountID).Msg("Failed to refresh presence lease")
	}
}

// End marks the account offline with a last_seen timestamp
func (s *PresenceService) End(ctx context.Context, accountID string) {
	s.set(ctx, accountID, false)
}

// Get returns presence derived from the stored flag and the lease
func (s *PresenceService) Get(ctx context.Context, accountID string) (*Presence, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, storeError("failed to get account", err)
	}

	p := &Presence{Online: account.IsOnline, LastSeen: account.LastSeen}
	if alive, err := s.signals.HasPresence(ctx, accountID); err != nil {
		log.Warn().Err(err).Str("user_id", accountID).Msg("Failed to read presence lease")
	} else {
		p.Online = p.Online && alive
	}
	return p, nil
}

// Reap marks online accounts whose lease expired as offline and returns how
// many were reaped.
func (s *PresenceService) Reap(ctx context.Context) int {
	online, err := s.accounts.ListOnline(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list online accounts")
		return 0
	}

	reaped := 0
	for _, id := range online {
		alive, err := s.signals.HasPresence(ctx, id)
		if err != nil || alive {
			continue
		}
		s.set(ctx, id, false)
		reaped++
	}
	return reaped
}

// Run reaps on every tick until ctx is cancelled
func (s *PresenceService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Reap(ctx); n > 0 {
				log.Info().Int("count", n).Msg("Reaped stale presence")
			}
		}
	}
}

func (s *PresenceService) set(ctx context.Context, accountID string, online bool) {
	at := s.now()
	if err := s.accounts.SetPresence(ctx, accountID, online, at); err != nil {
		log.Warn().Err(err).Str("user_id", accountID).Bool("online", online).Msg("Failed to write presence")
	}

	var err error
	if online {
		err = s.signals.TouchPresence(ctx, accountID, s.ttl)
	} else {
		err = s.signals.ClearPresence(ctx, accountID)
	}
	if err != nil {
		log.Warn().Err(err).Str("user_id", accountID).Msg("Failed to write presence lease")
	}

	pc, err := s.pairs.Context(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrNoActivePairing) {
			log.Warn().Err(err).Str("user_id", accountID).Msg("Failed to resolve partner for presence")
		}
		return
	}

	publish(ctx, s.bus, WSMessage{
		Type:      EventPresence,
		Timestamp: at.UnixMilli(),
		ChannelID: pc.ChannelID,
		AccountID: accountID,
		Online:    &online,
	}, pc.PartnerID)
}
