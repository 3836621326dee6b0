package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lovechat-backend/internal/models"

	"github.com/google/uuid"
)

// MomentService manages the shared gallery and calendar of a pair
type MomentService struct {
	moments MomentStore
	bus     Publisher
}

// NewMomentService creates a new moment service
func NewMomentService(moments MomentStore, bus Publisher) *MomentService {
	return &MomentService{
		moments: moments,
		bus:     bus,
	}
}

// AddMemoryRequest carries the uploaded image URL
type AddMemoryRequest struct {
	ImageURL string `json:"image"`
}

// AddEventRequest is a calendar entry payload
type AddEventRequest struct {
	Title    string           `json:"title"`
	Date     time.Time        `json:"date"`
	Type     models.EventType `json:"type"`
	Location string           `json:"location"`
}

// AddMemory stores a gallery item
func (s *MomentService) AddMemory(ctx context.Context, pc PairContext, req AddMemoryRequest) (*models.Memory, error) {
	url := strings.TrimSpace(req.ImageURL)
	if url == "" {
		return nil, fmt.Errorf("image url is required: %w", ErrInvalidInput)
	}

	memory := &models.Memory{
		ID:        uuid.New().String(),
		ChannelID: pc.ChannelID,
		ImageURL:  url,
		AddedBy:   pc.AccountID,
		CreatedAt: time.Now(),
	}
	if err := s.moments.CreateMemory(ctx, memory); err != nil {
		return nil, storeError("failed to create memory", err)
	}

	publish(ctx, s.bus, WSMessage{Type: EventMemoryAdded, ChannelID: pc.ChannelID, AccountID: pc.AccountID, Data: memory},
		pc.Members()...)
	return memory, nil
}

// ListMemories returns gallery items newest first
func (s *MomentService) ListMemories(ctx context.Context, pc PairContext) ([]*models.Memory, error) {
	memories, err := s.moments.ListMemories(ctx, pc.ChannelID)
	if err != nil {
		return nil, storeError("failed to list memories", err)
	}
	if memories == nil {
		memories = []*models.Memory{}
	}
	return memories, nil
}

// DeleteMemory removes a gallery item; either member of the pair may
func (s *MomentService) DeleteMemory(ctx context.Context, pc PairContext, memoryID string) error {
	if err := s.moments.DeleteMemory(ctx, pc.ChannelID, memoryID); err != nil {
		return storeError("failed to delete memory", err)
	}

	publish(ctx, s.bus, WSMessage{Type: EventMemoryDeleted, ChannelID: pc.ChannelID, AccountID: pc.AccountID, Data: memoryID},
		pc.Members()...)
	return nil
}

func validEventType(t models.EventType) bool {
	switch t {
	case models.EventDate, models.EventAnniversary, models.EventTrip, models.EventOther:
		return true
	}
	return false
}

// AddEvent stores a calendar entry. An empty type defaults to other.
func (s *MomentService) AddEvent(ctx context.Context, pc PairContext, req AddEventRequest) (*models.Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("date is required: %w", ErrInvalidInput)
	}
	if req.Type == "" {
		req.Type = models.EventOther
	}
	if !validEventType(req.Type) {
		return nil, fmt.Errorf("unknown event type %q: %w", req.Type, ErrInvalidInput)
	}

	event := &models.Event{
		ID:        uuid.New().String(),
		ChannelID: pc.ChannelID,
		Title:     title,
		Date:      req.Date,
		Type:      req.Type,
		Location:  strings.TrimSpace(req.Location),
		CreatedBy: pc.AccountID,
		CreatedAt: time.Now(),
	}
	if err := s.moments.CreateEvent(ctx, event); err != nil {
		return nil, storeError("failed to create event", err)
	}

	publish(ctx, s.bus, WSMessage{Type: EventEventAdded, ChannelID: pc.ChannelID, AccountID: pc.AccountID, Data: event},
		pc.Members()...)
	return event, nil
}

// ListEvents returns calendar entries by date
func (s *MomentService) ListEvents(ctx context.Context, pc PairContext) ([]*models.Event, error) {
	events, err := s.moments.ListEvents(ctx, pc.ChannelID)
	if err != nil {
		return nil, storeError("failed to list events", err)
	}
	if events == nil {
		events = []*models.Event{}
	}
	return events, nil
}

// DeleteEvent removes a calendar entry; either member may
func (s *MomentService) DeleteEvent(ctx context.Context, pc PairContext, eventID string) error {
	if err := s.moments.DeleteEvent(ctx, pc.ChannelID, eventID); err != nil {
		return storeError("failed to delete event", err)
	}

	publish(ctx, s.bus, WSMessage{Type: EventEventDeleted, ChannelID: pc.ChannelID, AccountID: pc.AccountID, Data: eventID},
		pc.Members()...)
	return nil
}
