package dedupe

import (
	"context"
	"fmt"

	"github.com/ledgerline/statements/internal/domain"
)

// TransactionFinder is the slice of the persisted transaction store the
// engine needs: one batched hash lookup.
type TransactionFinder interface {
	// FindByHashes returns a hash -> persisted transaction id map for the
	// hashes that already exist for this user, in a single query.
	FindByHashes(ctx context.Context, userID string, hashes []string) (map[string]string, error)
}

// Engine checks extracted transactions for duplicates against the persisted
// store.
type Engine struct {
	finder TransactionFinder
}

// NewEngine creates a duplicate engine over the given store.
func NewEngine(finder TransactionFinder) *Engine {
	return &Engine{finder: finder}
}

// FindDuplicate looks up a single hash, returning the persisted transaction
// id when one exists.
func (e *Engine) FindDuplicate(ctx context.Context, userID, hash string) (string, bool, error) {
	found, err := e.finder.FindByHashes(ctx, userID, []string{hash})
	if err != nil {
		return "", false, fmt.Errorf("dedupe: hash lookup: %w", err)
	}
	id, ok := found[hash]
	return id, ok, nil
}

// Annotate sets IsDuplicate and DuplicateOf on every transaction in the
// batch from one batched lookup. Hundreds of hashes per statement resolve in
// a single round trip.
func (e *Engine) Annotate(ctx context.Context, userID string, txs []domain.ExtractedTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	hashes := make([]string, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for i := range txs {
		h := txs[i].Hash
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return nil
	}

	found, err := e.finder.FindByHashes(ctx, userID, hashes)
	if err != nil {
		return fmt.Errorf("dedupe: batch hash lookup: %w", err)
	}

	for i := range txs {
		id, ok := found[txs[i].Hash]
		txs[i].IsDuplicate = ok
		if ok {
			txs[i].DuplicateOf = id
		} else {
			txs[i].DuplicateOf = ""
		}
	}
	return nil
}
