// Package store defines the persistence interfaces for statements and
// transactions. Implementations live in the inmemory and postgres
// subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/statements/internal/domain"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("not found")

// StatementStore persists uploaded bank statements and their extraction
// working sets. All lookups are scoped to a user.
type StatementStore interface {
	Create(ctx context.Context, st *domain.BankStatement) error
	Get(ctx context.Context, userID, id string) (*domain.BankStatement, error)
	Update(ctx context.Context, st *domain.BankStatement) error
	Delete(ctx context.Context, userID, id string) error
	ListByUser(ctx context.Context, userID string) ([]*domain.BankStatement, error)
}

// TransactionStore persists imported transactions and serves the duplicate
// and reconciliation queries against the existing ledger.
type TransactionStore interface {
	// FindByHashes returns a hash -> transaction id map for hashes already
	// present in the user's ledger.
	FindByHashes(ctx context.Context, userID string, hashes []string) (map[string]string, error)

	// FindCandidates returns unlinked transactions for the user whose
	// absolute amount equals amount, issued within [start, end], excluding
	// rows that were themselves bank imports.
	FindCandidates(ctx context.Context, userID string, amount int64, start, end time.Time) ([]domain.Transaction, error)

	// CreateMany inserts all records atomically. If any insert fails, none
	// of the records are persisted.
	CreateMany(ctx context.Context, records []domain.Transaction) error
}
