package services

import (
	"errors"
	"fmt"

	"lovechat-backend/internal/repository"
)

var (
	// ErrInvalidState means a pairing precondition was violated
	ErrInvalidState = errors.New("invalid state")
	// ErrEmptyMessage means neither text nor media was supplied
	ErrEmptyMessage = errors.New("message has no text and no media")
	// ErrUnauthorized means the caller does not own the entity it tried to change
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoActivePairing means the caller is not mutually paired
	ErrNoActivePairing = errors.New("no active pairing")
	// ErrStoreUnavailable means the store failed; callers may re-invoke
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound means the addressed entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrConfirmationRequired means a destructive operation was not confirmed
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrInvalidInput means a request field is malformed
	ErrInvalidInput = errors.New("invalid input")
)

// storeError translates a repository failure into the service taxonomy
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidState, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
