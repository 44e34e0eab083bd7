package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialhub/aggregator/internal/models"
)

// SaveDraft inserts or refreshes a post draft with its staged media.
func (s *Store) SaveDraft(ctx context.Context, draft *models.Draft, media []models.DraftMedia) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_drafts (id, content, target_platforms, scheduled_time, status, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			target_platforms = excluded.target_platforms,
			scheduled_time = excluded.scheduled_time,
			status = excluded.status,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		draft.ID, draft.Content, draft.TargetPlatforms, draft.ScheduledTime,
		draft.Status, draft.LastError, draft.CreatedAt.UTC(), draft.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM draft_media WHERE draft_id = ?", draft.ID); err != nil {
		return fmt.Errorf("failed to clear draft media for %s: %w", draft.ID, err)
	}
	for _, m := range media {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO draft_media (id, draft_id, media_type, local_path, width, height, duration_ms, alt_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.DraftID, m.Type, m.LocalPath, m.Width, m.Height, m.Duration, m.AltText)
		if err != nil {
			return fmt.Errorf("failed to save draft media %s: %w", m.ID, err)
		}
	}
	return nil
}

// GetDraft loads a draft and its media, or nil if unknown.
func (s *Store) GetDraft(ctx context.Context, id string) (*models.Draft, []models.DraftMedia, error) {
	var draft models.Draft
	err := s.db.GetContext(ctx, &draft, "SELECT * FROM post_drafts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load draft %s: %w", id, err)
	}
	var media []models.DraftMedia
	err = s.db.SelectContext(ctx, &media,
		"SELECT * FROM draft_media WHERE draft_id = ? ORDER BY id ASC", id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load draft media for %s: %w", id, err)
	}
	return &draft, media, nil
}

// ListDrafts returns drafts most recently touched first.
func (s *Store) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	var drafts []models.Draft
	err := s.db.SelectContext(ctx, &drafts, "SELECT * FROM post_drafts ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

// UpdateDraftStatus moves a draft through its publishing lifecycle.
func (s *Store) UpdateDraftStatus(ctx context.Context, id, status, lastError string) error {
	var errVal sql.NullString
	if lastError != "" {
		errVal = sql.NullString{String: lastError, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE post_drafts SET status = ?, last_error = ?, updated_at = ? WHERE id = ?",
		status, errVal, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update draft %s: %w", id, err)
	}
	return nil
}

// DeleteDraft removes a draft and its staged media.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM draft_media WHERE draft_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete draft media for %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM post_drafts WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	return nil
}
