package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KeyStore reserves idempotency keys through the primary key on
// (trigger_id, key). Two near-simultaneous firings race on the insert and
// exactly one row wins; an expired time-window reservation is reclaimed in the
// same statement.
type KeyStore struct {
	db *sql.DB
}

func NewKeyStore(db *sql.DB) *KeyStore {
	return &KeyStore{db: db}
}

const reserveSQL = `
	INSERT INTO idempotency_keys (trigger_id, key, reserved_at, expires_at)
	VALUES ($1, $2, NOW(), $3)
	ON CONFLICT (trigger_id, key) DO UPDATE SET
		reserved_at = NOW(),
		expires_at = EXCLUDED.expires_at
	WHERE idempotency_keys.expires_at IS NOT NULL
	  AND idempotency_keys.expires_at < NOW()`

func (s *KeyStore) Reserve(ctx context.Context, triggerID, key string, ttl time.Duration) (bool, error) {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}

	result, err := s.db.ExecContext(ctx, reserveSQL, triggerID, key, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check reservation result: %w", err)
	}

	return affected == 1, nil
}

func (s *KeyStore) Exists(ctx context.Context, triggerID, key string) (bool, error) {
	var exists bool

	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM idempotency_keys
			WHERE trigger_id = $1 AND key = $2
			  AND (expires_at IS NULL OR expires_at > NOW())
		)`, triggerID, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	return exists, nil
}
