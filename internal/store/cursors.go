package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialhub/aggregator/internal/models"
)

// GetCursor returns the persisted pagination state for a platform, or nil if
// the platform has never been fetched.
func (s *Store) GetCursor(ctx context.Context, p models.Platform) (*models.SyncCursor, error) {
	var cursor models.SyncCursor
	err := s.db.GetContext(ctx, &cursor, "SELECT * FROM sync_status WHERE platform = ?", p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor for %s: %w", p, err)
	}
	return &cursor, nil
}

// SaveCursor advances a platform's cursor after a successful remote fetch.
func (s *Store) SaveCursor(ctx context.Context, p models.Platform, token string, syncTime time.Time) error {
	var tokenVal sql.NullString
	if token != "" {
		tokenVal = sql.NullString{String: token, Valid: true}
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_status (platform, cursor, last_sync_time, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			cursor = excluded.cursor,
			last_sync_time = excluded.last_sync_time,
			updated_at = excluded.updated_at`,
		p, tokenVal, syncTime.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", p, err)
	}
	return nil
}

// ResetCursor drops a platform's pagination state. Only an explicit feed
// reset goes through here; normal operation never rolls a cursor back.
func (s *Store) ResetCursor(ctx context.Context, p models.Platform) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_status WHERE platform = ?", p)
	if err != nil {
		return fmt.Errorf("failed to reset cursor for %s: %w", p, err)
	}
	return nil
}
