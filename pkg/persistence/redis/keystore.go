// Package redis provides the hot-path idempotency key store. Reservation
// atomicity comes from SET NX; time-window keys expire with their window.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type KeyStore struct {
	client *redis.Client
}

func NewKeyStore(client *redis.Client) *KeyStore {
	return &KeyStore{client: client}
}

func NewKeyStoreFromURL(url string) (*KeyStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewKeyStore(redis.NewClient(opts)), nil
}

func reservationKey(triggerID, key string) string {
	return "pulse:idempotency:" + triggerID + ":" + key
}

func (s *KeyStore) Reserve(ctx context.Context, triggerID, key string, ttl time.Duration) (bool, error) {
	reserved, err := s.client.SetNX(ctx, reservationKey(triggerID, key),
		time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	return reserved, nil
}

func (s *KeyStore) Exists(ctx context.Context, triggerID, key string) (bool, error) {
	count, err := s.client.Exists(ctx, reservationKey(triggerID, key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	return count > 0, nil
}

func (s *KeyStore) Close() error {
	return s.client.Close()
}
