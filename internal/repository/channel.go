package repository

import (
	"context"
	"errors"
	"fmt"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ChannelRepository stores the durable part of a channel (its config).
// Rows are created lazily on first write.
type ChannelRepository struct {
	db DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Get returns the channel config; a channel never written is returned empty
func (r *ChannelRepository) Get(ctx context.Context, id string) (*models.Channel, error) {
	channel := models.Channel{ID: id}
	err := r.db.QueryRow(ctx,
		`SELECT wallpaper, updated_at FROM channels WHERE id = $1`, id,
	).Scan(&channel.Wallpaper, &channel.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

// SetWallpaper merge-writes the wallpaper field
func (r *ChannelRepository) SetWallpaper(ctx context.Context, id, url string) error {
	query := `
		INSERT INTO channels (id, wallpaper, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET wallpaper = EXCLUDED.wallpaper, updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, id, url); err != nil {
		return fmt.Errorf("failed to set wallpaper: %w", err)
	}
	return nil
}
