// Package stash holds a user's pending message for a thread that does
// not exist yet. The client submits the first message before the
// thread row is created; the stash bridges the gap across the redirect
// to the new thread's page.
package stash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chatkb/backend/internal/apperr"
)

const DefaultTTL = 10 * time.Minute

type Stash struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Stash {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Stash{client: client, ttl: ttl}
}

func key(threadID uuid.UUID) string {
	return "stash:pending:" + threadID.String()
}

// Save stores the pending message, replacing any previous one for the
// thread. The entry expires on its own if never consumed.
func (s *Stash) Save(ctx context.Context, threadID uuid.UUID, content string) error {
	if content == "" {
		return apperr.NewValidationError("content")
	}
	if err := s.client.Set(ctx, key(threadID), content, s.ttl).Err(); err != nil {
		return fmt.Errorf("stash save: %w", err)
	}
	return nil
}

// Peek returns the pending message without consuming it.
func (s *Stash) Peek(ctx context.Context, threadID uuid.UUID) (string, error) {
	val, err := s.client.Get(ctx, key(threadID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("pending message for thread %s: %w", threadID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stash peek: %w", err)
	}
	return val, nil
}

// Take returns the pending message and removes it atomically, so a
// double-submit after the redirect replays nothing.
func (s *Stash) Take(ctx context.Context, threadID uuid.UUID) (string, error) {
	val, err := s.client.GetDel(ctx, key(threadID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("pending message for thread %s: %w", threadID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stash take: %w", err)
	}
	return val, nil
}

// Discard drops the pending message if present.
func (s *Stash) Discard(ctx context.Context, threadID uuid.UUID) error {
	if err := s.client.Del(ctx, key(threadID)).Err(); err != nil {
		return fmt.Errorf("stash discard: %w", err)
	}
	return nil
}
