package repository

import (
	"context"
	"errors"
	"fmt"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, channel_id, sender_id, text, media_ref, media_kind, status, reactions, seq, created_at`

// MessageRepository handles database operations for channel messages.
// Queries filter on equality only and order by (created_at, seq).
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var kind, status string
	err := row.Scan(
		&m.ID, &m.ChannelID, &m.SenderID, &m.Text, &m.MediaRef, &kind, &status,
		&m.Reactions, &m.Seq, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.MediaKind = models.MediaKind(kind)
	m.Status = models.MessageStatus(status)
	return &m, nil
}

// Create appends a message; the store assigns seq and created_at
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, sender_id, text, media_ref, media_kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`
	err := r.db.QueryRow(ctx, query,
		msg.ID, msg.ChannelID, msg.SenderID, msg.Text, msg.MediaRef, string(msg.MediaKind), string(msg.Status),
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message within a channel
func (r *MessageRepository) GetByID(ctx context.Context, channelID, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND channel_id = $2`
	msg, err := scanMessage(r.db.QueryRow(ctx, query, id, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// ListByChannel returns the latest limit messages in ascending order
func (r *MessageRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + `
			FROM messages
			WHERE channel_id = $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		) latest
		ORDER BY created_at, seq
	`
	rows, err := r.db.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// Delete permanently removes a message
func (r *MessageRepository) Delete(ctx context.Context, channelID, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND channel_id = $2`, id, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkRead moves every unread message not sent by viewer to read and returns their ids
func (r *MessageRepository) MarkRead(ctx context.Context, channelID, viewerID string) ([]string, error) {
	query := `
		UPDATE messages SET status = 'read'
		WHERE channel_id = $1 AND sender_id <> $2 AND status <> 'read'
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, channelID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect read messages: %w", err)
	}
	return ids, nil
}

// MarkDelivered moves a sent message to delivered; it reports whether it changed
func (r *MessageRepository) MarkDelivered(ctx context.Context, channelID, id string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE messages SET status = 'delivered' WHERE id = $1 AND channel_id = $2 AND status = 'sent'`,
		id, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ToggleReaction clears the account's reaction when present, otherwise sets emoji.
// Only the account's own key is touched so concurrent reactions never collide.
func (r *MessageRepository) ToggleReaction(ctx context.Context, channelID, id, accountID, emoji string) (map[string]string, error) {
	query := `
		UPDATE messages
		SET reactions = CASE
			WHEN reactions ? $3 THEN reactions - $3
			ELSE reactions || jsonb_build_object($3::text, $4::text)
		END
		WHERE id = $1 AND channel_id = $2
		RETURNING reactions
	`
	var reactions map[string]string
	err := r.db.QueryRow(ctx, query, id, channelID, accountID, emoji).Scan(&reactions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to toggle reaction: %w", err)
	}
	return reactions, nil
}
