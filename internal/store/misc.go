package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"socialhub/aggregator/internal/models"
)

// GetProfile returns the singleton user profile, or nil if none exists yet.
func (s *Store) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM user_profile LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// SaveProfile writes the singleton user profile.
func (s *Store) SaveProfile(ctx context.Context, p *models.UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profile (id, display_name, username, bio, avatar_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			username = excluded.username,
			bio = excluded.bio,
			avatar_path = excluded.avatar_path,
			updated_at = excluded.updated_at`,
		p.ID, p.DisplayName, p.Username, p.Bio, p.AvatarPath,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetFeedPosition returns the consumer's saved position for a feed, or nil.
func (s *Store) GetFeedPosition(ctx context.Context, feedID string) (*models.FeedPosition, error) {
	var pos models.FeedPosition
	err := s.db.GetContext(ctx, &pos, "SELECT * FROM feed_positions WHERE feed_id = ?", feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feed position %s: %w", feedID, err)
	}
	return &pos, nil
}

// SaveFeedPosition records where the consumer left off in a feed.
func (s *Store) SaveFeedPosition(ctx context.Context, pos *models.FeedPosition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_positions (feed_id, last_position, last_viewed_post_id, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(feed_id) DO UPDATE SET
			last_position = excluded.last_position,
			last_viewed_post_id = excluded.last_viewed_post_id,
			last_updated = excluded.last_updated`,
		pos.FeedID, pos.LastPosition, pos.LastViewedPostID, pos.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("failed to save feed position %s: %w", pos.FeedID, err)
	}
	return nil
}

// GetSetting returns an app setting value, or the empty string if unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.AppSetting
	err := s.db.GetContext(ctx, &setting, "SELECT * FROM app_settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	return setting.Value, nil
}

// SaveSetting writes an app setting.
func (s *Store) SaveSetting(ctx context.Context, setting *models.AppSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		setting.Key, setting.Value, setting.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", setting.Key, err)
	}
	return nil
}
