package models

import (
	"database/sql"
	"time"
)

// Token types tracked by the engagement ledger.
const (
	TokenEngagement = "engagement"
	TokenCreator    = "creator"
)

// TokenBalance represents a row in the token_balances table.
type TokenBalance struct {
	TokenType   string    `db:"token_type" json:"token_type"`
	Balance     int64     `db:"balance" json:"balance"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// TokenTransaction represents a row in the token_transactions table.
// The ledger is append-only; balances are derived by applying amounts in order.
type TokenTransaction struct {
	ID              string         `db:"id" json:"id"`
	TokenType       string         `db:"token_type" json:"token_type"`
	Amount          int64          `db:"amount" json:"amount"`
	Description     string         `db:"description" json:"description"`
	RelatedEntityID sql.NullString `db:"related_entity_id" json:"related_entity_id,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
