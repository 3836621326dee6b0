package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lovechat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reasons carried by call_ended
const (
	CallEndRejected = "rejected"
	CallEndHangup   = "ended"
	CallEndMissed   = "missed"
)

// CallService coordinates the calling -> accepted -> idle handshake. Signals
// are independent records; simultaneous starts from both sides produce two
// calling signals and are not reconciled.
type CallService struct {
	calls       CallStore
	pairs       *PairService
	bus         Publisher
	notifier    Notifier
	ringTimeout time.Duration
	now         func() time.Time
}

// NewCallService creates a new call service
func NewCallService(calls CallStore, pairs *PairService, bus Publisher, notifier Notifier, ringTimeout time.Duration) *CallService {
	return &CallService{
		calls:       calls,
		pairs:       pairs,
		bus:         bus,
		notifier:    notifier,
		ringTimeout: ringTimeout,
		now:         time.Now,
	}
}

// StartCallRequest is the call offer payload
type StartCallRequest struct {
	Kind models.CallKind `json:"kind"`
}

// StartCall creates a calling signal from -> to. Both must be mutually paired.
func (s *CallService) StartCall(ctx context.Context, fromID, toID string, kind models.CallKind) (*models.CallSignal, error) {
	if kind != models.CallAudio && kind != models.CallVideo {
		return nil, fmt.Errorf("unknown call kind %q: %w", kind, ErrInvalidInput)
	}

	pc, err := s.pairs.Context(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if toID != "" && pc.PartnerID != toID {
		return nil, ErrNoActivePairing
	}

	signal := &models.CallSignal{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      pc.PartnerID,
		Kind:      kind,
		Status:    models.CallCalling,
		CreatedAt: s.now(),
	}
	if err := s.calls.Create(ctx, signal); err != nil {
		return nil, storeError("failed to create call signal", err)
	}

	log.Info().
		Str("call_id", signal.ID).
		Str("from_id", signal.FromID).
		Str("to_id", signal.ToID).
		Str("kind", string(kind)).
		Msg("Call started")

	publish(ctx, s.bus, WSMessage{
		Type:      EventCallIncoming,
		ChannelID: pc.ChannelID,
		AccountID: fromID,
		CallID:    signal.ID,
		Kind:      string(kind),
		Data:      signal,
	}, pc.Members()...)
	s.notifier.Notify(ctx, signal.ToID, fromID, models.NotifyCall, fmt.Sprintf("Incoming %s call", kind))

	return signal, nil
}

// Answer moves a calling signal to accepted. Only the callee may answer.
func (s *CallService) Answer(ctx context.Context, accountID, callID string) (*models.CallSignal, error) {
	signal, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return nil, storeError("failed to get call signal", err)
	}
	if signal.ToID != accountID {
		return nil, fmt.Errorf("only the callee may answer: %w", ErrUnauthorized)
	}

	if err := s.calls.Transition(ctx, callID, models.CallCalling, models.CallAccepted); err != nil {
		return nil, storeError("failed to answer call", err)
	}
	signal.Status = models.CallAccepted

	log.Info().Str("call_id", callID).Msg("Call accepted")

	publish(ctx, s.bus, WSMessage{
		Type:      EventCallAccepted,
		ChannelID: ResolveChannel(signal.FromID, signal.ToID),
		AccountID: accountID,
		CallID:    callID,
		Kind:      string(signal.Kind),
		Data:      signal,
	}, signal.FromID, signal.ToID)
	return signal, nil
}

// Reject declines a signal; every signal between the two accounts goes away
func (s *CallService) Reject(ctx context.Context, accountID, callID string) error {
	signal, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return storeError("failed to get call signal", err)
	}
	if signal.FromID != accountID && signal.ToID != accountID {
		return fmt.Errorf("not a call participant: %w", ErrUnauthorized)
	}

	peerID := signal.FromID
	if peerID == accountID {
		peerID = signal.ToID
	}
	return s.terminate(ctx, accountID, peerID, CallEndRejected)
}

// End hangs up; signals in both directions are deleted
func (s *CallService) End(ctx context.Context, accountID, peerID string) error {
	if peerID == "" {
		pc, err := s.pairs.Context(ctx, accountID)
		if err != nil {
			return err
		}
		peerID = pc.PartnerID
	}
	return s.terminate(ctx, accountID, peerID, CallEndHangup)
}

// Active lists live signals between the pair
func (s *CallService) Active(ctx context.Context, pc PairContext) ([]*models.CallSignal, error) {
	signals, err := s.calls.ListBetween(ctx, pc.AccountID, pc.PartnerID)
	if err != nil {
		return nil, storeError("failed to list call signals", err)
	}
	if signals == nil {
		signals = []*models.CallSignal{}
	}
	return signals, nil
}

func (s *CallService) terminate(ctx context.Context, accountID, peerID, reason string) error {
	removed, err := s.calls.DeleteBetween(ctx, accountID, peerID)
	if err != nil {
		return storeError("failed to delete call signals", err)
	}

	log.Info().
		Str("user_id", accountID).
		Str("peer_id", peerID).
		Int("signals", len(removed)).
		Str("reason", reason).
		Msg("Call terminated")

	for _, signal := range removed {
		publish(ctx, s.bus, WSMessage{
			Type:      EventCallEnded,
			ChannelID: ResolveChannel(accountID, peerID),
			AccountID: accountID,
			CallID:    signal.ID,
			Message:   reason,
		}, accountID, peerID)
	}
	return nil
}

// ExpireStale deletes calling signals older than the ring timeout and reports
// them as missed calls.
func (s *CallService) ExpireStale(ctx context.Context) int {
	removed, err := s.calls.DeleteStale(ctx, s.now().Add(-s.ringTimeout))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Failed to expire call signals")
		}
		return 0
	}

	for _, signal := range removed {
		publish(ctx, s.bus, WSMessage{
			Type:      EventCallEnded,
			ChannelID: ResolveChannel(signal.FromID, signal.ToID),
			AccountID: signal.FromID,
			CallID:    signal.ID,
			Message:   CallEndMissed,
		}, signal.FromID, signal.ToID)
		s.notifier.Notify(ctx, signal.ToID, signal.FromID, models.NotifyCall, fmt.Sprintf("Missed %s call", signal.Kind))
	}
	return len(removed)
}

// Run expires stale signals on every tick until ctx is cancelled
func (s *CallService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireStale(ctx); n > 0 {
				log.Info().Int("count", n).Msg("Expired unanswered calls")
			}
		}
	}
}
