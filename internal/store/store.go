// Package store is the durable cache beneath the aggregation core: keyed
// upserts and range queries over the sqlite tables. Each call is atomic per
// row; callers never get (or need) multi-table transactions, with the single
// exception of the token ledger which runs its two writes in one tx.
package store

import (
	"socialhub/aggregator/internal/database"
)

// Store provides typed access to the cache tables.
type Store struct {
	db *database.DB
}

// New creates a store over an open database connection.
func New(db *database.DB) *Store {
	return &Store{db: db}
}
