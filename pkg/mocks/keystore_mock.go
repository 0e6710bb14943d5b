package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockKeyStore is a mock implementation of idempotency.KeyStore.
type MockKeyStore struct {
	mock.Mock
}

func (m *MockKeyStore) Reserve(ctx context.Context, triggerID, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, triggerID, key, ttl)

	return args.Bool(0), args.Error(1)
}

func (m *MockKeyStore) Exists(ctx context.Context, triggerID, key string) (bool, error) {
	args := m.Called(ctx, triggerID, key)

	return args.Bool(0), args.Error(1)
}
