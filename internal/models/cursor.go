package models

import (
	"database/sql"
	"time"
)

// SyncCursor represents a row in the sync_status table: per-platform opaque
// pagination state. The cursor token only advances after a successful remote
// fetch and is never rolled back except by an explicit feed reset.
type SyncCursor struct {
	Platform     Platform       `db:"platform" json:"platform"`
	Cursor       sql.NullString `db:"cursor" json:"cursor,omitempty"`
	LastSyncTime sql.NullTime   `db:"last_sync_time" json:"last_sync_time,omitempty"`
	NextSyncTime sql.NullTime   `db:"next_sync_time" json:"next_sync_time,omitempty"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
