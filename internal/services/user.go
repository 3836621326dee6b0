package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"lovechat-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength  = 6
	codeChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	jwtExpDays  = 365
	finderLimit = 50
)

// UserService handles account-related business logic
type UserService struct {
	accounts  AccountStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(accounts AccountStore, jwtSecret string) *UserService {
	return &UserService{
		accounts:  accounts,
		jwtSecret: jwtSecret,
	}
}

// CreateUserRequest is the registration payload
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
}

// BlockRequest must carry confirm=true
type BlockRequest struct {
	Confirm bool `json:"confirm"`
}

// GenerateUniqueCode generates a unique 6-character pairing code
func (s *UserService) GenerateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateCode()
		exists, err := s.accounts.CodeExists(ctx, code)
		if err != nil {
			return "", storeError("failed to check code existence", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

// generateCode generates a random 6-character code
func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// GenerateJWT generates a JWT token for an account
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the account ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// CreateUser registers a single account with a fresh pairing code
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.Account, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		return nil, fmt.Errorf("first name is required: %w", ErrInvalidInput)
	}

	code, err := s.GenerateUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	userID := uuid.New().String()

	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	account := &models.Account{
		ID:        userID,
		Code:      code,
		FirstName: req.FirstName,
		LastName:  strings.TrimSpace(req.LastName),
		PhotoURL:  req.PhotoURL,
		Token:     token,
		Status:    models.StatusSingle,
		CreatedAt: time.Now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, storeError("failed to create user", err)
	}

	log.Info().Str("user_id", userID).Msg("Account created")
	return account, nil
}

// GetUser returns an account profile
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("failed to get user", err)
	}
	return account, nil
}

// UpdatePushToken stores or clears the APNs device token
func (s *UserService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	var token *string
	if pushToken = strings.TrimSpace(pushToken); pushToken != "" {
		token = &pushToken
	}
	if err := s.accounts.UpdatePushToken(ctx, userID, token); err != nil {
		return storeError("failed to update push token", err)
	}
	return nil
}

// FindSingles lists single accounts the viewer may send a request to.
// Accounts blocked in either direction are left out.
func (s *UserService) FindSingles(ctx context.Context, userID string) ([]*models.Account, error) {
	viewer, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("failed to get user", err)
	}

	candidates, err := s.accounts.ListSingles(ctx, userID, finderLimit)
	if err != nil {
		return nil, storeError("failed to list singles", err)
	}

	out := make([]*models.Account, 0, len(candidates))
	for _, c := range candidates {
		if viewer.HasBlocked(c.ID) || c.HasBlocked(userID) {
			continue
		}
		c.Token = ""
		c.PushToken = nil
		c.Blocked = nil
		out = append(out, c)
	}
	return out, nil
}

// Block adds target to the caller's blocked set. It is destructive to any
// future pairing so the caller must confirm.
func (s *UserService) Block(ctx context.Context, userID, targetID string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	if userID == targetID {
		return fmt.Errorf("cannot block yourself: %w", ErrInvalidInput)
	}
	if _, err := s.accounts.GetByID(ctx, targetID); err != nil {
		return storeError("failed to get target", err)
	}
	if err := s.accounts.AddBlocked(ctx, userID, targetID); err != nil {
		return storeError("failed to block user", err)
	}

	log.Info().Str("user_id", userID).Str("target_id", targetID).Msg("Account blocked")
	return nil
}
