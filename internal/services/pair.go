package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PairService drives the single -> pending -> taken lifecycle and its reverse
type PairService struct {
	accounts         AccountStore
	requests         RequestStore
	bus              Publisher
	notifier         Notifier
	disconnectPhrase string
	now              func() time.Time
}

// NewPairService creates a new pair service
func NewPairService(
	accounts AccountStore,
	requests RequestStore,
	bus Publisher,
	notifier Notifier,
	disconnectPhrase string,
) *PairService {
	return &PairService{
		accounts:         accounts,
		requests:         requests,
		bus:              bus,
		notifier:         notifier,
		disconnectPhrase: disconnectPhrase,
		now:              time.Now,
	}
}

// CreatePairRequest addresses the recipient by account id or pairing code
type CreatePairRequest struct {
	Target string `json:"target"`
}

// DisconnectRequest carries the confirmation phrase
type DisconnectRequest struct {
	Phrase string `json:"phrase"`
}

// PairStatus is the pairing snapshot exposed to clients
type PairStatus struct {
	Status            models.RelationshipStatus `json:"status"`
	PartnerID         string                    `json:"partner_id,omitempty"`
	ChannelID         string                    `json:"channel_id,omitempty"`
	RelationshipStart *time.Time                `json:"relationship_start,omitempty"`
	Partner           *models.Account           `json:"partner,omitempty"`
	Inbound           []*models.PairingRequest  `json:"inbound"`
}

// Context returns the caller's pair context, or ErrNoActivePairing unless the
// link is mutual on both accounts.
func (s *PairService) Context(ctx context.Context, accountID string) (PairContext, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return PairContext{}, storeError("failed to get account", err)
	}
	partnerID := account.Partner()
	if account.Status != models.StatusTaken || partnerID == "" {
		return PairContext{}, ErrNoActivePairing
	}

	partner, err := s.accounts.GetByID(ctx, partnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return PairContext{}, ErrNoActivePairing
	}
	if err != nil {
		return PairContext{}, storeError("failed to get partner", err)
	}
	if partner.Status != models.StatusTaken || partner.Partner() != accountID {
		return PairContext{}, ErrNoActivePairing
	}

	return NewPairContext(accountID, partnerID), nil
}

// Status returns the effective pairing status with inbound requests
func (s *PairService) Status(ctx context.Context, accountID string) (*PairStatus, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, storeError("failed to get account", err)
	}

	inbound, err := s.requests.ListInbound(ctx, accountID)
	if err != nil {
		return nil, storeError("failed to list inbound requests", err)
	}
	if inbound == nil {
		inbound = []*models.PairingRequest{}
	}

	status := &PairStatus{Status: models.StatusSingle, Inbound: inbound}

	if pc, err := s.Context(ctx, accountID); err == nil {
		status.Status = models.StatusTaken
		status.PartnerID = pc.PartnerID
		status.ChannelID = pc.ChannelID
		status.RelationshipStart = account.RelationshipStart
		if partner, err := s.accounts.GetByID(ctx, pc.PartnerID); err == nil {
			partner.Token = ""
			partner.PushToken = nil
			partner.Blocked = nil
			status.Partner = partner
		}
		return status, nil
	} else if !errors.Is(err, ErrNoActivePairing) {
		return nil, err
	}

	pending, err := s.requests.HasOutbound(ctx, accountID)
	if err != nil {
		return nil, storeError("failed to check outbound requests", err)
	}
	if pending {
		status.Status = models.StatusPending
	}
	return status, nil
}

// lookupTarget resolves an account id, falling back to a pairing code
func (s *PairService) lookupTarget(ctx context.Context, target string) (*models.Account, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("target is required: %w", ErrInvalidInput)
	}

	account, err := s.accounts.GetByID(ctx, target)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError("failed to get target", err)
	}

	if len(target) == codeLength {
		account, err = s.accounts.GetByCode(ctx, strings.ToUpper(target))
		if err == nil {
			return account, nil
		}
	}
	return nil, storeError("target not found", err)
}

// SendRequest proposes a pairing. Re-submission creates another request.
func (s *PairService) SendRequest(ctx context.Context, fromID, target string) (*models.PairingRequest, error) {
	from, err := s.accounts.GetByID(ctx, fromID)
	if err != nil {
		return nil, storeError("failed to get requester", err)
	}
	to, err := s.lookupTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	switch {
	case from.ID == to.ID:
		return nil, fmt.Errorf("cannot pair with yourself: %w", ErrInvalidState)
	case from.Status == models.StatusTaken:
		return nil, fmt.Errorf("requester is already taken: %w", ErrInvalidState)
	case to.Status == models.StatusTaken:
		return nil, fmt.Errorf("recipient is already taken: %w", ErrInvalidState)
	case from.HasBlocked(to.ID) || to.HasBlocked(from.ID):
		return nil, fmt.Errorf("accounts are blocked: %w", ErrInvalidState)
	}

	req := &models.PairingRequest{
		ID:        uuid.New().String(),
		FromID:    from.ID,
		FromName:  from.FullName(),
		ToID:      to.ID,
		Status:    models.RequestPending,
		CreatedAt: s.now(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, storeError("failed to create pairing request", err)
	}

	log.Info().
		Str("request_id", req.ID).
		Str("from_id", req.FromID).
		Str("to_id", req.ToID).
		Msg("Pairing request sent")

	publish(ctx, s.bus, WSMessage{Type: EventPairRequest, AccountID: from.ID, Data: req}, from.ID, to.ID)
	s.notifier.Notify(ctx, to.ID, from.ID, models.NotifyRequest,
		fmt.Sprintf("%s sent you a relationship request", from.FullName()))

	return req, nil
}

// recipientRequest loads a request and checks the caller is its recipient
func (s *PairService) recipientRequest(ctx context.Context, requestID, accountID string) (*models.PairingRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, storeError("failed to get pairing request", err)
	}
	if req.ToID != accountID {
		return nil, fmt.Errorf("only the recipient may resolve a request: %w", ErrUnauthorized)
	}
	return req, nil
}

// AcceptRequest pairs both accounts and retires the request in one
// transaction. Nothing is mutated when it fails.
func (s *PairService) AcceptRequest(ctx context.Context, requestID, accountID string) (PairContext, error) {
	req, err := s.recipientRequest(ctx, requestID, accountID)
	if err != nil {
		return PairContext{}, err
	}

	start := s.now()
	if err := s.accounts.Pair(ctx, req.ID, req.FromID, req.ToID, start); err != nil {
		return PairContext{}, storeError("failed to accept pairing request", err)
	}

	pc := NewPairContext(accountID, req.FromID)
	log.Info().
		Str("request_id", req.ID).
		Str("channel_id", pc.ChannelID).
		Msg("Pair created")

	publish(ctx, s.bus, WSMessage{
		Type:      EventPairCreated,
		ChannelID: pc.ChannelID,
		AccountID: accountID,
		Data: map[string]interface{}{
			"request_id":         req.ID,
			"members":            pc.Members(),
			"relationship_start": start,
		},
	}, pc.Members()...)
	s.notifier.Notify(ctx, req.FromID, accountID, models.NotifySystem, "Your relationship request was accepted")

	return pc, nil
}

// RejectRequest retires the request without touching either account
func (s *PairService) RejectRequest(ctx context.Context, requestID, accountID string) error {
	req, err := s.recipientRequest(ctx, requestID, accountID)
	if err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, req.ID); err != nil {
		return storeError("failed to reject pairing request", err)
	}

	log.Info().Str("request_id", req.ID).Msg("Pairing request rejected")

	publish(ctx, s.bus, WSMessage{Type: EventPairRejected, AccountID: accountID, Data: map[string]string{"request_id": req.ID}},
		req.FromID, req.ToID)
	s.notifier.Notify(ctx, req.FromID, accountID, models.NotifySystem, "Your relationship request was declined")
	return nil
}

// Disconnect resets both sides to single. The caller must repeat the
// configured confirmation phrase.
func (s *PairService) Disconnect(ctx context.Context, accountID, phrase string) error {
	if strings.TrimSpace(phrase) != s.disconnectPhrase {
		return ErrConfirmationRequired
	}

	partnerID, err := s.accounts.Unpair(ctx, accountID)
	if err != nil {
		return storeError("failed to disconnect", err)
	}

	channelID := ResolveChannel(accountID, partnerID)
	log.Info().
		Str("user_id", accountID).
		Str("partner_id", partnerID).
		Str("channel_id", channelID).
		Msg("Pair deleted")

	publish(ctx, s.bus, WSMessage{Type: EventPairDeleted, ChannelID: channelID, AccountID: accountID}, accountID, partnerID)
	s.notifier.Notify(ctx, partnerID, accountID, models.NotifySystem, "Your partner ended the relationship")
	return nil
}
