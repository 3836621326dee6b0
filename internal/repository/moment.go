package repository

import (
	"context"
	"fmt"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// MomentRepository handles the shared gallery and calendar of a channel
type MomentRepository struct {
	db DB
}

// NewMomentRepository creates a new memories/events repository
func NewMomentRepository(db DB) *MomentRepository {
	return &MomentRepository{db: db}
}

// CreateMemory adds a gallery item
func (r *MomentRepository) CreateMemory(ctx context.Context, m *models.Memory) error {
	query := `
		INSERT INTO memories (id, channel_id, image_url, added_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Exec(ctx, query, m.ID, m.ChannelID, m.ImageURL, m.AddedBy, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

// ListMemories returns gallery items newest first
func (r *MomentRepository) ListMemories(ctx context.Context, channelID string) ([]*models.Memory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, channel_id, image_url, added_by, created_at
		FROM memories WHERE channel_id = $1
		ORDER BY created_at DESC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	memories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Memory, error) {
		var m models.Memory
		err := row.Scan(&m.ID, &m.ChannelID, &m.ImageURL, &m.AddedBy, &m.CreatedAt)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan memories: %w", err)
	}
	return memories, nil
}

// DeleteMemory removes a gallery item
func (r *MomentRepository) DeleteMemory(ctx context.Context, channelID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM memories WHERE id = $1 AND channel_id = $2`, id, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateEvent adds a calendar entry
func (r *MomentRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (id, channel_id, title, date, type, location, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.ChannelID, e.Title, e.Date, string(e.Type), e.Location, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// ListEvents returns calendar entries by date ascending
func (r *MomentRepository) ListEvents(ctx context.Context, channelID string) ([]*models.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, channel_id, title, date, type, location, created_by, created_at
		FROM events WHERE channel_id = $1
		ORDER BY date
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Event, error) {
		var e models.Event
		var kind string
		err := row.Scan(&e.ID, &e.ChannelID, &e.Title, &e.Date, &kind, &e.Location, &e.CreatedBy, &e.CreatedAt)
		e.Type = models.EventType(kind)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}
	return events, nil
}

// DeleteEvent removes a calendar entry
func (r *MomentRepository) DeleteEvent(ctx context.Context, channelID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1 AND channel_id = $2`, id, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}
