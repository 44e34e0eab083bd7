// Package tokens keeps the engagement token ledger: an append-only
// transaction log plus a per-type running balance.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"socialhub/aggregator/internal/database"
	"socialhub/aggregator/internal/models"
)

// Ledger records token transactions and maintains balances. Recording a
// transaction and bumping the balance happen in one sqlite transaction so a
// crash cannot leave the log and the balance disagreeing.
type Ledger struct {
	db  *database.DB
	now func() time.Time
}

// New creates a ledger; now may be nil.
func New(db *database.DB, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{db: db, now: now}
}

// Record applies a signed token amount, returning the transaction id.
func (l *Ledger) Record(ctx context.Context, tokenType string, amount int64, description, relatedEntityID string) (string, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin token transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := l.now().UTC()

	var related sql.NullString
	if relatedEntityID != "" {
		related = sql.NullString{String: relatedEntityID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_transactions (id, token_type, amount, description, related_entity_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, tokenType, amount, description, related, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert token transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_balances (token_type, balance, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(token_type) DO UPDATE SET
			balance = balance + excluded.balance,
			last_updated = excluded.last_updated`,
		tokenType, amount, now)
	if err != nil {
		return "", fmt.Errorf("failed to update token balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit token transaction: %w", err)
	}

	log.Debug().
		Str("token_type", tokenType).
		Int64("amount", amount).
		Str("transaction_id", id).
		Msg("Token transaction recorded")
	return id, nil
}

// Balance returns the current balance for a token type; an unknown type has
// balance zero.
func (l *Ledger) Balance(ctx context.Context, tokenType string) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := l.db.GetContext(ctx, &balance,
		"SELECT * FROM token_balances WHERE token_type = ?", tokenType)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.TokenBalance{TokenType: tokenType}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance for %s: %w", tokenType, err)
	}
	return &balance, nil
}

// Transactions lists recent transactions for a token type, newest first.
func (l *Ledger) Transactions(ctx context.Context, tokenType string, limit, offset int) ([]models.TokenTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.TokenTransaction
	err := l.db.SelectContext(ctx, &out, `
		SELECT * FROM token_transactions WHERE token_type = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		tokenType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", tokenType, err)
	}
	return out, nil
}
