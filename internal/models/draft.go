package models

import (
	"database/sql"
	"time"
)

// Draft status values.
const (
	DraftStatusDraft      = "draft"
	DraftStatusScheduled  = "scheduled"
	DraftStatusPublishing = "publishing"
	DraftStatusPublished  = "published"
	DraftStatusFailed     = "failed"
)

// Draft represents a row in the post_drafts table.
type Draft struct {
	ID              string         `db:"id" json:"id"`
	Content         string         `db:"content" json:"content"`
	TargetPlatforms string         `db:"target_platforms" json:"target_platforms"` // JSON array of platform ids
	ScheduledTime   sql.NullTime   `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Status          string         `db:"status" json:"status"`
	LastError       sql.NullString `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// DraftMedia represents a row in the draft_media table: a local attachment
// staged for publishing.
type DraftMedia struct {
	ID        string         `db:"id" json:"id"`
	DraftID   string         `db:"draft_id" json:"draft_id"`
	Type      MediaType      `db:"media_type" json:"type"`
	LocalPath string         `db:"local_path" json:"local_path"`
	Width     sql.NullInt64  `db:"width" json:"width,omitempty"`
	Height    sql.NullInt64  `db:"height" json:"height,omitempty"`
	Duration  sql.NullInt64  `db:"duration_ms" json:"duration_ms,omitempty"`
	AltText   sql.NullString `db:"alt_text" json:"alt_text,omitempty"`
}
