package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lovechat-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, code, first_name, last_name, photo_url, push_token, status,
	partner_id, relationship_start, blocked, is_online, last_seen, created_at`

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var status string
	err := row.Scan(
		&a.ID, &a.Code, &a.FirstName, &a.LastName, &a.PhotoURL, &a.PushToken, &status,
		&a.PartnerID, &a.RelationshipStart, &a.Blocked, &a.IsOnline, &a.LastSeen, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = models.RelationshipStatus(status)
	return &a, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, code, first_name, last_name, photo_url, push_token, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		account.ID, account.Code, account.FirstName, account.LastName, account.PhotoURL,
		account.PushToken, string(account.Status), account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetByCode retrieves an account by its pairing code
func (r *AccountRepository) GetByCode(ctx context.Context, code string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE code = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account with code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by code: %w", err)
	}
	return account, nil
}

// CodeExists checks if a code already exists
func (r *AccountRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// UpdatePushToken updates the push token for an account
func (r *AccountRepository) UpdatePushToken(ctx context.Context, accountID string, pushToken *string) error {
	query := `UPDATE accounts SET push_token = $1 WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, pushToken, accountID); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// ListSingles returns single accounts other than the viewer
func (r *AccountRepository) ListSingles(ctx context.Context, excludeID string, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE status = 'single' AND id <> $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list singles: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// AddBlocked appends target to the account's blocked set
func (r *AccountRepository) AddBlocked(ctx context.Context, accountID, targetID string) error {
	query := `
		UPDATE accounts
		SET blocked = CASE WHEN $2 = ANY(blocked) THEN blocked ELSE array_append(blocked, $2) END
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, accountID, targetID)
	if err != nil {
		return fmt.Errorf("failed to block account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// Pair links two accounts and retires the pairing request in one transaction.
// Returns ErrConflict when either account is already taken and ErrNotFound when
// an account or the request is gone.
func (r *AccountRepository) Pair(ctx context.Context, requestID, fromID, toID string, start time.Time) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := lockSingles(ctx, tx, fromID, toID); err != nil {
			return err
		}

		result, err := tx.Exec(ctx, `
			UPDATE accounts
			SET status = 'taken',
			    partner_id = CASE WHEN id = $1 THEN $2 ELSE $1 END,
			    relationship_start = $3
			WHERE id IN ($1, $2)
		`, fromID, toID, start)
		if err != nil {
			return fmt.Errorf("failed to pair accounts: %w", err)
		}
		if result.RowsAffected() != 2 {
			return fmt.Errorf("pair updated %d accounts: %w", result.RowsAffected(), ErrConflict)
		}

		result, err = tx.Exec(ctx, `DELETE FROM pairing_requests WHERE id = $1`, requestID)
		if err != nil {
			return fmt.Errorf("failed to retire pairing request: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("pairing request %s: %w", requestID, ErrNotFound)
		}
		return nil
	})
}

// lockSingles locks both rows in id order and checks neither is taken
func lockSingles(ctx context.Context, tx pgx.Tx, a, b string) error {
	ids := []string{a, b}
	sort.Strings(ids)

	rows, err := tx.Query(ctx, `SELECT id, status FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		if models.RelationshipStatus(status) == models.StatusTaken {
			return fmt.Errorf("account %s is taken: %w", id, ErrConflict)
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating accounts: %w", err)
	}
	if found != 2 {
		return fmt.Errorf("accounts %s, %s: %w", a, b, ErrNotFound)
	}
	return nil
}

// Unpair resets an account and its partner to single in one transaction and
// returns the former partner id. Returns ErrConflict when the account is not
// taken or the link is not mutual.
func (r *AccountRepository) Unpair(ctx context.Context, accountID string) (string, error) {
	var partnerID string
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var status string
		var partner *string
		err := tx.QueryRow(ctx,
			`SELECT status, partner_id FROM accounts WHERE id = $1 FOR UPDATE`, accountID,
		).Scan(&status, &partner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}
		if models.RelationshipStatus(status) != models.StatusTaken || partner == nil {
			return fmt.Errorf("account %s is not taken: %w", accountID, ErrConflict)
		}
		partnerID = *partner

		result, err := tx.Exec(ctx, `
			UPDATE accounts
			SET status = 'single', partner_id = NULL, relationship_start = NULL
			WHERE (id = $1 AND partner_id = $2) OR (id = $2 AND partner_id = $1)
		`, accountID, partnerID)
		if err != nil {
			return fmt.Errorf("failed to unpair accounts: %w", err)
		}
		if result.RowsAffected() != 2 {
			return fmt.Errorf("unpair updated %d accounts: %w", result.RowsAffected(), ErrConflict)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return partnerID, nil
}

// SetPresence records the online flag and last-seen instant
func (r *AccountRepository) SetPresence(ctx context.Context, accountID string, online bool, at time.Time) error {
	query := `UPDATE accounts SET is_online = $2, last_seen = $3 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, accountID, online, at); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// ListOnline returns ids of accounts flagged online
func (r *AccountRepository) ListOnline(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts WHERE is_online`)
	if err != nil {
		return nil, fmt.Errorf("failed to list online accounts: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect online accounts: %w", err)
	}
	return ids, nil
}
