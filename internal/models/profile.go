package models

import (
	"database/sql"
	"time"
)

// LocalUserID is the fixed key of the singleton user_profile row.
const LocalUserID = "local_user"

// UserProfile represents the singleton row in the user_profile table.
type UserProfile struct {
	ID          string         `db:"id" json:"id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	Username    string         `db:"username" json:"username"`
	Bio         sql.NullString `db:"bio" json:"bio,omitempty"`
	AvatarPath  sql.NullString `db:"avatar_path" json:"avatar_path,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// FeedPosition represents a row in the feed_positions table: the consumer's
// last viewed offset per logical feed. Merge logic never touches these rows.
type FeedPosition struct {
	FeedID           string         `db:"feed_id" json:"feed_id"`
	LastPosition     int            `db:"last_position" json:"last_position"`
	LastViewedPostID sql.NullString `db:"last_viewed_post_id" json:"last_viewed_post_id,omitempty"`
	LastUpdated      time.Time      `db:"last_updated" json:"last_updated"`
}

// AppSetting represents a row in the app_settings key/value table.
type AppSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
