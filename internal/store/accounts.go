package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialhub/aggregator/internal/models"
)

// ActiveAccounts returns every account still participating in fan-out.
func (s *Store) ActiveAccounts(ctx context.Context) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	err := s.db.SelectContext(ctx, &accounts,
		"SELECT * FROM connected_accounts WHERE is_active = 1 ORDER BY platform ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load active accounts: %w", err)
	}
	return accounts, nil
}

// ActiveAccountForPlatform returns the active account on a platform, or nil.
func (s *Store) ActiveAccountForPlatform(ctx context.Context, p models.Platform) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT * FROM connected_accounts WHERE platform = ? AND is_active = 1 LIMIT 1", p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account for %s: %w", p, err)
	}
	return &account, nil
}

// UpsertAccount links or refreshes a connected account.
func (s *Store) UpsertAccount(ctx context.Context, account *models.ConnectedAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connected_accounts (id, platform, username, display_name, avatar_url, is_active, last_sync_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		account.ID, account.Platform, account.Username, account.DisplayName,
		account.AvatarURL, account.IsActive, account.LastSyncTime,
		account.CreatedAt.UTC(), account.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ID, err)
	}
	return nil
}

// DeactivateAccount unlinks an account without deleting it, so historical
// interaction records keep a valid reference.
func (s *Store) DeactivateAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE connected_accounts SET is_active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account %s: %w", id, err)
	}
	return nil
}
