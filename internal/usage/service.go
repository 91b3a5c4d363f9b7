// Package usage enforces the per-user daily message quota. Counters
// live in Redis keyed by user and UTC day and expire with the day.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatkb/backend/internal/apperr"
)

type Service struct {
	client     *redis.Client
	dailyLimit int
	now        func() time.Time
}

func NewService(client *redis.Client, dailyLimit int) *Service {
	return &Service{
		client:     client,
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

// Quota is the caller-visible usage snapshot.
type Quota struct {
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	ResetAt   time.Time `json:"reset_at"`
}

func (s *Service) key(userID string) string {
	return fmt.Sprintf("usage:%s:%s", userID, s.now().UTC().Format("2006-01-02"))
}

// resetAt is the next UTC midnight, when the day key rolls over.
func (s *Service) resetAt() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// Quota reports the user's remaining allowance for today.
func (s *Service) Quota(ctx context.Context, userID string) (*Quota, error) {
	used, err := s.client.Get(ctx, s.key(userID)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("usage get: %w", err)
	}

	remaining := s.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &Quota{
		Remaining: remaining,
		Total:     s.dailyLimit,
		ResetAt:   s.resetAt(),
	}, nil
}

// Consume spends one message from today's quota. When the quota is
// exhausted the counter is rolled back and a validation error named
// after the quota comes back, so a rejected request never burns usage.
func (s *Service) Consume(ctx context.Context, userID string) (*Quota, error) {
	key := s.key(userID)

	used, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("usage incr: %w", err)
	}
	if used == 1 {
		// First message of the day; the key dies at the rollover.
		ttl := s.resetAt().Sub(s.now().UTC())
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("usage expire: %w", err)
		}
	}

	if int(used) > s.dailyLimit {
		if err := s.client.Decr(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("usage rollback: %w", err)
		}
		return nil, apperr.NewValidationError("daily_limit")
	}

	return &Quota{
		Remaining: s.dailyLimit - int(used),
		Total:     s.dailyLimit,
		ResetAt:   s.resetAt(),
	}, nil
}
