package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialhub/aggregator/internal/models"
)

// InsertInteraction persists a freshly submitted interaction record.
func (s *Store) InsertInteraction(ctx context.Context, in *models.Interaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_interactions (id, post_id, interaction_type, content, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.PostID, in.Type, in.Content, in.Status, in.Attempts, in.LastError,
		in.CreatedAt.UTC(), in.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction %s: %w", in.ID, err)
	}
	return nil
}

// GetInteraction loads a single interaction record, or nil if unknown.
func (s *Store) GetInteraction(ctx context.Context, id string) (*models.Interaction, error) {
	var in models.Interaction
	err := s.db.GetContext(ctx, &in, "SELECT * FROM user_interactions WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load interaction %s: %w", id, err)
	}
	return &in, nil
}

// UpdateInteractionStatus records the outcome of a dispatch attempt.
func (s *Store) UpdateInteractionStatus(ctx context.Context, id, status string, attempts int, lastError string) error {
	var errVal sql.NullString
	if lastError != "" {
		errVal = sql.NullString{String: lastError, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_interactions SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		status, attempts, errVal, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update interaction %s: %w", id, err)
	}
	return nil
}

// InteractionsByStatus lists interactions in creation order. Dispatch relies
// on this ordering so conflicting actions on one post replay correctly.
func (s *Store) InteractionsByStatus(ctx context.Context, status string) ([]models.Interaction, error) {
	var out []models.Interaction
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM user_interactions WHERE status = ? ORDER BY created_at ASC, id ASC", status)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s interactions: %w", status, err)
	}
	return out, nil
}
