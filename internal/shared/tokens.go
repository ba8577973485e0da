package shared

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps short-lived secrets (OTPs, reset tokens) in Redis
// under "<kind>:<subject>" keys.
type TokenStore struct {
	client *redis.Client
	kind   string
	ttl    time.Duration
}

// NewTokenStore constructs a store for one kind of token.
func NewTokenStore(client *redis.Client, kind string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, kind: kind, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// Put stores value for subject, replacing any previous value.
func (s *TokenStore) Put(ctx context.Context, subject, value string) error {
	if err := s.client.Set(ctx, s.key(subject), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("token store put %s: %w", s.kind, err)
	}
	return nil
}

// Get returns the stored value or ErrNotFound when absent or expired.
func (s *TokenStore) Get(ctx context.Context, subject string) (string, error) {
	value, err := s.client.Get(ctx, s.key(subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("token store get %s: %w", s.kind, err)
	}
	return value, nil
}

// Verify compares candidate against the stored value in constant time.
// A missing token and a mismatch both report false.
func (s *TokenStore) Verify(ctx context.Context, subject, candidate string) (bool, error) {
	stored, err := s.Get(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

// Delete removes the token for subject.
func (s *TokenStore) Delete(ctx context.Context, subject string) error {
	if err := s.client.Del(ctx, s.key(subject)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("token store delete %s: %w", s.kind, err)
	}
	return nil
}

func (s *TokenStore) key(subject string) string {
	return s.kind + ":" + subject
}
