package models

import (
	"database/sql"
	"time"
)

// InteractionType is the kind of user action queued against a platform.
type InteractionType string

const (
	InteractionLike     InteractionType = "like"
	InteractionComment  InteractionType = "comment"
	InteractionShare    InteractionType = "share"
	InteractionBookmark InteractionType = "bookmark"
)

// Interaction status values. Records keep their terminal status for history;
// they are never deleted automatically.
const (
	InteractionPending = "pending"
	InteractionSynced  = "synced"
	InteractionFailed  = "failed"
)

// Interaction represents a row in the user_interactions table: a locally
// captured user action awaiting (or done with) remote confirmation.
type Interaction struct {
	ID        string          `db:"id" json:"id"`
	PostID    string          `db:"post_id" json:"post_id"`
	Type      InteractionType `db:"interaction_type" json:"type"`
	Content   sql.NullString  `db:"content" json:"content,omitempty"`
	Status    string          `db:"status" json:"status"`
	Attempts  int             `db:"attempts" json:"attempts"`
	LastError sql.NullString  `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
