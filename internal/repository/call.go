package repository

import (
	"context"
	"fmt"
	"time"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// CallRepository handles database operations for call signals
type CallRepository struct {
	db DB
}

// NewCallRepository creates a new call signal repository
func NewCallRepository(db DB) *CallRepository {
	return &CallRepository{db: db}
}

func collectSignals(rows pgx.Rows) ([]*models.CallSignal, error) {
	defer rows.Close()

	var signals []*models.CallSignal
	for rows.Next() {
		var s models.CallSignal
		var kind, status string
		if err := rows.Scan(&s.ID, &s.FromID, &s.ToID, &kind, &status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call signal: %w", err)
		}
		s.Kind = models.CallKind(kind)
		s.Status = models.CallStatus(status)
		signals = append(signals, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call signals: %w", err)
	}
	return signals, nil
}

// Create stores a new call signal
func (r *CallRepository) Create(ctx context.Context, signal *models.CallSignal) error {
	query := `
		INSERT INTO call_signals (id, from_id, to_id, kind, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		signal.ID, signal.FromID, signal.ToID, string(signal.Kind), string(signal.Status), signal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call signal: %w", err)
	}
	return nil
}

// GetByID retrieves a call signal by ID
func (r *CallRepository) GetByID(ctx context.Context, id string) (*models.CallSignal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, from_id, to_id, kind, status, created_at FROM call_signals WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get call signal: %w", err)
	}
	signals, err := collectSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, fmt.Errorf("call signal %s: %w", id, ErrNotFound)
	}
	return signals[0], nil
}

// Transition moves a signal from one status to another; ErrConflict when it is
// no longer in the expected status
func (r *CallRepository) Transition(ctx context.Context, id string, from, to models.CallStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE call_signals SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to update call signal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("call signal %s not %s: %w", id, from, ErrConflict)
	}
	return nil
}

// ListBetween returns signals between two accounts in either direction
func (r *CallRepository) ListBetween(ctx context.Context, a, b string) ([]*models.CallSignal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, from_id, to_id, kind, status, created_at
		FROM call_signals
		WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)
		ORDER BY created_at
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to list call signals: %w", err)
	}
	return collectSignals(rows)
}

// DeleteBetween removes signals between two accounts in either direction
func (r *CallRepository) DeleteBetween(ctx context.Context, a, b string) ([]*models.CallSignal, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM call_signals
		WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)
		RETURNING id, from_id, to_id, kind, status, created_at
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to delete call signals: %w", err)
	}
	return collectSignals(rows)
}

// DeleteStale removes calling signals created before the cutoff
func (r *CallRepository) DeleteStale(ctx context.Context, before time.Time) ([]*models.CallSignal, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM call_signals
		WHERE status = 'calling' AND created_at < $1
		RETURNING id, from_id, to_id, kind, status, created_at
	`, before)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale call signals: %w", err)
	}
	return collectSignals(rows)
}
