package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const typingFieldPrefix = "typing_"

// SignalRepository keeps ephemeral per-account and per-channel signals in Redis:
// presence leases that expire on their own and typing flags.
type SignalRepository struct {
	rdb *redis.Client
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(rdb *redis.Client) *SignalRepository {
	return &SignalRepository{rdb: rdb}
}

func presenceKey(accountID string) string {
	return "presence:" + accountID
}

func typingKey(channelID string) string {
	return "channel:" + channelID + ":typing"
}

// TouchPresence creates or extends an account's presence lease
func (r *SignalRepository) TouchPresence(ctx context.Context, accountID string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, presenceKey(accountID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to touch presence: %w", err)
	}
	return nil
}

// ClearPresence drops an account's presence lease
func (r *SignalRepository) ClearPresence(ctx context.Context, accountID string) error {
	if err := r.rdb.Del(ctx, presenceKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

// HasPresence reports whether an account holds a live lease
func (r *SignalRepository) HasPresence(ctx context.Context, accountID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, presenceKey(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return n > 0, nil
}

// SetTyping merge-writes the typing_<accountId> field of a channel.
// The hash expires after ttl so a crashed composer cannot leave it set forever.
func (r *SignalRepository) SetTyping(ctx context.Context, channelID, accountID string, typing bool, ttl time.Duration) error {
	value := "0"
	if typing {
		value = "1"
	}

	key := typingKey(channelID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, typingFieldPrefix+accountID, value)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set typing flag: %w", err)
	}
	return nil
}

// TypingFlags returns the typing flags of a channel keyed by account id
func (r *SignalRepository) TypingFlags(ctx context.Context, channelID string) (map[string]bool, error) {
	fields, err := r.rdb.HGetAll(ctx, typingKey(channelID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read typing flags: %w", err)
	}

	flags := make(map[string]bool, len(fields))
	for field, value := range fields {
		if accountID, ok := strings.CutPrefix(field, typingFieldPrefix); ok {
			flags[accountID] = value == "1"
		}
	}
	return flags, nil
}
