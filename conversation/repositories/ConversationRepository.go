package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	conversationKeyPrefix = "conversation:"
	seenMessageKeyPrefix  = "webhook:msg:"
	onceKeyPrefix         = "once:"

	// Conversation keys outlive the 24h inactivity window so the timeout
	// handler can see the stale state and reset it.
	conversationTTL = 7 * 24 * time.Hour
	seenMessageTTL  = 24 * time.Hour
)

// ConversationRepository stores per-phone conversation state plus the two
// small guards the webhook path needs: message dedup and once-only flags.
type ConversationRepository interface {
	GetState(ctx context.Context, phoneNumber string) (*models.ConversationState, error)
	PutState(ctx context.Context, state *models.ConversationState) error
	DeleteState(ctx context.Context, phoneNumber string) error
	MarkMessageSeen(ctx context.Context, messageID string) (bool, error)
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseOnce(ctx context.Context, key string) error
}

type conversationRepository struct {
	client *redis.Client
}

// NewConversationRepository initializes a new conversation repository
func NewConversationRepository(client *redis.Client) ConversationRepository {
	return &conversationRepository{client: client}
}

// GetState returns the stored state for a phone number, or nil when the
// conversation is unknown.
func (cr *conversationRepository) GetState(ctx context.Context, phoneNumber string) (*models.ConversationState, error) {
	raw, err := cr.client.Get(ctx, conversationKeyPrefix+phoneNumber).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		config.Logger.Error("Failed to get conversation state", zap.String("phoneNumber", phoneNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		config.Logger.Error("Corrupt conversation state, discarding", zap.String("phoneNumber", phoneNumber), zap.Error(err))
		// Drop the corrupt entry so the next message starts a fresh
		// conversation instead of failing forever.
		_ = cr.client.Del(ctx, conversationKeyPrefix+phoneNumber).Err()
		return nil, nil
	}
	return &state, nil
}

func (cr *conversationRepository) PutState(ctx context.Context, state *models.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	if err := cr.client.Set(ctx, conversationKeyPrefix+state.PhoneNumber, raw, conversationTTL).Err(); err != nil {
		config.Logger.Error("Failed to store conversation state", zap.String("phoneNumber", state.PhoneNumber), zap.Error(err))
		return fmt.Errorf("failed to store conversation state: %w", err)
	}
	return nil
}

func (cr *conversationRepository) DeleteState(ctx context.Context, phoneNumber string) error {
	if err := cr.client.Del(ctx, conversationKeyPrefix+phoneNumber).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	return nil
}

// MarkMessageSeen records a webhook message ID and reports whether this is
// the first delivery. Meta retries webhooks, so duplicates are routine.
func (cr *conversationRepository) MarkMessageSeen(ctx context.Context, messageID string) (bool, error) {
	first, err := cr.client.SetNX(ctx, seenMessageKeyPrefix+messageID, 1, seenMessageTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message id: %w", err)
	}
	return first, nil
}

// AcquireOnce atomically claims a named flag. It backs the completed-guarantors
// notification so the tenant hears about it exactly once.
func (cr *conversationRepository) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := cr.client.SetNX(ctx, onceKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire once-flag %s: %w", key, err)
	}
	return acquired, nil
}

// ReleaseOnce clears a claimed flag so a failed follow-up can be retried.
func (cr *conversationRepository) ReleaseOnce(ctx context.Context, key string) error {
	if err := cr.client.Del(ctx, onceKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release once-flag %s: %w", key, err)
	}
	return nil
}
