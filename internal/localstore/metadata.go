package localstore

import (
	"context"
	"database/sql"
	"errors"
)

// Keys used by other packages to persist state across restarts.
const (
	MetaAccessToken  = "session.access_token"
	MetaRefreshToken = "session.refresh_token"
	MetaUserID       = "session.user_id"
	MetaSyncedAt     = "sync.last_completed"
)

// GetMeta returns the stored value for key, or nil when absent.
func (s *Store) GetMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get metadata", err)
	}
	return value, nil
}

func (s *Store) SetMeta(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return storageErr("set metadata", err)
	}
	return nil
}

func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return storageErr("delete metadata", err)
	}
	return nil
}
