package models

import (
	"database/sql"
	"time"
)

// ConnectedAccount represents a row in the connected_accounts table.
// Accounts are deactivated on unlink, never deleted, so interaction history
// keeps a valid reference.
type ConnectedAccount struct {
	ID           string         `db:"id" json:"id"`
	Platform     Platform       `db:"platform" json:"platform"`
	Username     string         `db:"username" json:"username"`
	DisplayName  string         `db:"display_name" json:"display_name"`
	AvatarURL    sql.NullString `db:"avatar_url" json:"avatar_url,omitempty"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	LastSyncTime sql.NullTime   `db:"last_sync_time" json:"last_sync_time,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// NewConnectedAccount creates an active account for a platform with timestamps set.
func NewConnectedAccount(id string, platform Platform, username, displayName string) *ConnectedAccount {
	now := time.Now().UTC()
	return &ConnectedAccount{
		ID:          id,
		Platform:    platform,
		Username:    username,
		DisplayName: displayName,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
