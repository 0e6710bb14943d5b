package file

import (
	"context"
	"sync"
	"time"
)

// KeyStore is the in-process reservation store used by the file provider.
// Reservations with a TTL expire and become reservable again, matching the
// time-window strategies.
type KeyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // composite key -> expiry; zero time = never
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]time.Time)}
}

func compositeKey(triggerID, key string) string {
	return triggerID + "|" + key
}

func (s *KeyStore) Reserve(_ context.Context, triggerID, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	composite := compositeKey(triggerID, key)

	expiry, reserved := s.keys[composite]
	if reserved && (expiry.IsZero() || time.Now().Before(expiry)) {
		return false, nil
	}

	if ttl > 0 {
		s.keys[composite] = time.Now().Add(ttl)
	} else {
		s.keys[composite] = time.Time{}
	}

	return true, nil
}

func (s *KeyStore) Exists(_ context.Context, triggerID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, reserved := s.keys[compositeKey(triggerID, key)]
	if !reserved {
		return false, nil
	}

	return expiry.IsZero() || time.Now().Before(expiry), nil
}
