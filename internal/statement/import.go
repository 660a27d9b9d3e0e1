package statement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/statements/internal/domain"
)

// ImportOptions configures the final commit. The zero value skips
// transactions flagged as duplicates.
type ImportOptions struct {
	// IncludeDuplicates imports transactions even when their content hash
	// already exists in the ledger.
	IncludeDuplicates bool
	// DefaultCategory and DefaultProject are stamped onto every imported
	// transaction when set.
	DefaultCategory string
	DefaultProject  string
}

// ImportResult reports what one import committed.
type ImportResult struct {
	ImportedCount     int      `json:"importedCount"`
	SkippedDuplicates int      `json:"skippedDuplicates"`
	TransactionIDs    []string `json:"transactionIds"`
}

// Import commits the selected extracted transactions into the ledger. The
// write is all-or-nothing; on failure the statement stays ready and the
// error wraps the cause as an ImportError. Duplicates are re-checked against
// the ledger at commit time, not trusted from the review annotations.
func (s *Service) Import(ctx context.Context, userID, id string, txIDs []string, opts ImportOptions) (*ImportResult, error) {
	st, err := s.statements.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if st.Status != domain.StatusReady {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, st.Status)
	}
	if st.ExtractedData == nil {
		return nil, fmt.Errorf("statement %s has no extracted data", id)
	}

	candidates := selectForImport(st.ExtractedData.Transactions, txIDs)

	if err := s.dedupe.Annotate(ctx, userID, candidates); err != nil {
		return nil, fmt.Errorf("re-check duplicates: %w", err)
	}

	now := time.Now().UTC()
	result := &ImportResult{}
	var records []domain.Transaction

	for i := range candidates {
		tx := &candidates[i]
		if tx.IsDuplicate && !opts.IncludeDuplicates {
			result.SkippedDuplicates++
			continue
		}

		issuedAt, err := time.Parse("2006-01-02", tx.Date)
		if err != nil {
			return nil, &domain.ImportError{Err: fmt.Errorf("transaction %s: bad date %q: %w", tx.ID, tx.Date, err)}
		}

		records = append(records, domain.Transaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			Name:            tx.Description,
			TotalAmount:     tx.SignedAmount(),
			Currency:        tx.Currency,
			IssuedAt:        issuedAt,
			SourceType:      domain.SourceBankImport,
			SourceID:        st.ID,
			TransactionHash: tx.Hash,
			Category:        opts.DefaultCategory,
			Project:         opts.DefaultProject,
			CreatedAt:       now,
		})
	}

	if len(records) > 0 {
		if err := s.transactions.CreateMany(ctx, records); err != nil {
			return nil, &domain.ImportError{Err: err}
		}
	}

	st.Status = domain.StatusImported
	st.ImportedAt = &now
	st.UpdatedAt = now
	if err := s.statements.Update(ctx, st); err != nil {
		return nil, err
	}

	for i := range records {
		result.TransactionIDs = append(result.TransactionIDs, records[i].ID)
	}
	result.ImportedCount = len(records)

	s.log.Info().Str("statement_id", st.ID).
		Int("imported", result.ImportedCount).
		Int("skipped_duplicates", result.SkippedDuplicates).
		Msg("statement imported")
	return result, nil
}

// selectForImport returns copies of the selected transactions, restricted to
// txIDs when provided. Copies keep commit-time duplicate annotations from
// leaking into the stored working set.
func selectForImport(txs []domain.ExtractedTransaction, txIDs []string) []domain.ExtractedTransaction {
	var wanted map[string]struct{}
	if len(txIDs) > 0 {
		wanted = make(map[string]struct{}, len(txIDs))
		for _, id := range txIDs {
			wanted[id] = struct{}{}
		}
	}

	var out []domain.ExtractedTransaction
	for i := range txs {
		if !txs[i].Selected {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[txs[i].ID]; !ok {
				continue
			}
		}
		out = append(out, txs[i])
	}
	return out
}
