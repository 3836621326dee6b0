package repository

import (
	"context"
	"errors"
	"fmt"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// RequestRepository handles database operations for pairing requests
type RequestRepository struct {
	db DB
}

// NewRequestRepository creates a new pairing request repository
func NewRequestRepository(db DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create creates a new pairing request
func (r *RequestRepository) Create(ctx context.Context, req *models.PairingRequest) error {
	query := `
		INSERT INTO pairing_requests (id, from_id, from_name, to_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, req.ID, req.FromID, req.FromName, req.ToID, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pairing request: %w", err)
	}
	return nil
}

// GetByID retrieves a pairing request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.PairingRequest, error) {
	query := `
		SELECT id, from_id, from_name, to_id, status, created_at
		FROM pairing_requests
		WHERE id = $1
	`
	var req models.PairingRequest
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.FromID, &req.FromName, &req.ToID, &status, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pairing request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pairing request: %w", err)
	}
	req.Status = models.RequestStatus(status)
	return &req, nil
}

// ListInbound returns pending requests addressed to an account, oldest first
func (r *RequestRepository) ListInbound(ctx context.Context, toID string) ([]*models.PairingRequest, error) {
	query := `
		SELECT id, from_id, from_name, to_id, status, created_at
		FROM pairing_requests
		WHERE to_id = $1 AND status = 'pending'
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, toID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairing requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.PairingRequest
	for rows.Next() {
		var req models.PairingRequest
		var status string
		if err := rows.Scan(&req.ID, &req.FromID, &req.FromName, &req.ToID, &status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pairing request: %w", err)
		}
		req.Status = models.RequestStatus(status)
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pairing requests: %w", err)
	}
	return requests, nil
}

// HasOutbound checks if an account has a pending request it sent
func (r *RequestRepository) HasOutbound(ctx context.Context, fromID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM pairing_requests WHERE from_id = $1 AND status = 'pending')`
	var exists bool
	if err := r.db.QueryRow(ctx, query, fromID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check outbound requests: %w", err)
	}
	return exists, nil
}

// Delete retires a pairing request
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM pairing_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pairing request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pairing request %s: %w", id, ErrNotFound)
	}
	return nil
}
