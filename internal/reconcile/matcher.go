// Package reconcile ranks existing invoice-like records as link candidates
// for newly extracted bank transactions.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/normalize"
)

// DateWindow is how far a candidate's issue date may sit from the extracted
// date, in days.
const DateWindow = 7

// DefaultTopK is how many suggestions Suggest returns at most.
const DefaultTopK = 3

const (
	baseScore    = 0.5
	dateBonusMax = 0.35
	nameBonus    = 0.15
)

// CandidateStore is the slice of the persisted transaction store the matcher
// queries. Implementations must return only candidates that are not already
// linked and whose source is invoice-like or manual; bank-import records
// never compete as invoice matches.
type CandidateStore interface {
	FindCandidates(ctx context.Context, userID string, amount int64, start, end time.Time) ([]domain.Transaction, error)
}

// Matcher produces ranked match suggestions for one extracted transaction.
type Matcher struct {
	store CandidateStore
	topK  int
}

// NewMatcher creates a matcher returning at most topK suggestions; topK <= 0
// uses the default.
func NewMatcher(store CandidateStore, topK int) *Matcher {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Matcher{store: store, topK: topK}
}

// Suggest returns candidates sorted by descending confidence, truncated to
// the matcher's top K. Scoring: 0.5 base for an exact-amount match inside
// the date window, up to +0.35 scaled by date closeness, +0.15 when the
// merchant name and the extracted description contain one another after
// normalization. Capped at 1.0.
func (m *Matcher) Suggest(ctx context.Context, userID string, tx *domain.ExtractedTransaction) ([]domain.MatchSuggestion, error) {
	date, err := time.Parse("2006-01-02", tx.Date)
	if err != nil {
		return nil, fmt.Errorf("reconcile: bad transaction date %q: %w", tx.Date, err)
	}

	start := date.AddDate(0, 0, -DateWindow)
	end := date.AddDate(0, 0, DateWindow)

	candidates, err := m.store.FindCandidates(ctx, userID, tx.Amount, start, end)
	if err != nil {
		return nil, fmt.Errorf("reconcile: candidate lookup: %w", err)
	}

	desc := normalize.Description(tx.Description)

	type scored struct {
		suggestion domain.MatchSuggestion
		dayDiff    float64
	}
	results := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		if c.LinkedTransactionID != "" || c.SourceType == domain.SourceBankImport {
			continue
		}
		if abs64(c.TotalAmount) != tx.Amount {
			continue
		}

		diff := date.Sub(c.IssuedAt).Hours() / 24
		if diff < 0 {
			diff = -diff
		}
		if diff > DateWindow {
			continue
		}

		score := baseScore + dateBonusMax*(1-diff/DateWindow)

		name := normalize.Description(c.Name)
		if name != "" && desc != "" &&
			(strings.Contains(name, desc) || strings.Contains(desc, name)) {
			score += nameBonus
		}
		if score > 1.0 {
			score = 1.0
		}

		results = append(results, scored{
			suggestion: domain.MatchSuggestion{
				TransactionID:   c.ID,
				TransactionName: c.Name,
				Confidence:      score,
			},
			dayDiff: diff,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].suggestion.Confidence != results[j].suggestion.Confidence {
			return results[i].suggestion.Confidence > results[j].suggestion.Confidence
		}
		return results[i].dayDiff < results[j].dayDiff
	})

	if len(results) > m.topK {
		results = results[:m.topK]
	}

	suggestions := make([]domain.MatchSuggestion, len(results))
	for i, r := range results {
		suggestions[i] = r.suggestion
	}
	return suggestions, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
