// Package provider abstracts schema-constrained statement extraction over
// interchangeable AI backends. Each backend exposes one Extract capability;
// Chain tries a configured list in priority order.
package provider

import (
	"context"
	"strings"

	"github.com/ledgerline/statements/internal/domain"
)

// Page is one statement page attachment sent to a provider.
type Page struct {
	MIMEType string
	Data     []byte
}

// ExtractRequest carries the prompt and page attachments for one statement.
// The JSON shape the provider must return is fixed (StatementExtraction);
// each backend encodes it in its native schema dialect.
type ExtractRequest struct {
	Prompt string
	Pages  []Page
}

// ExtractedEntry is one transaction as returned by a provider, before
// normalization into the extracted-transaction shape.
type ExtractedEntry struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"` // always positive; sign lives in Type
	Type        string  `json:"type"`   // "debit" or "credit"
}

// StatementExtraction is the schema-constrained result of one extraction
// request.
type StatementExtraction struct {
	BankName      string           `json:"bank_name"`
	AccountNumber string           `json:"account_number"` // last 4 digits
	PeriodStart   string           `json:"period_start"`
	PeriodEnd     string           `json:"period_end"`
	Currency      string           `json:"currency"`
	Transactions  []ExtractedEntry `json:"transactions"`
}

// Extractor is one extraction backend.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req ExtractRequest) (*StatementExtraction, error)
}

// ExtractionPrompt instructs the model to return every visible transaction
// in the fixed JSON shape.
const ExtractionPrompt = "You are a bank statement parser. Extract EVERY " +
	"transaction visible in the attached statement pages.\n\n" +
	"Rules:\n" +
	"- Return every transaction; do not skip small or repeated entries.\n" +
	"- Convert all dates to ISO format YYYY-MM-DD.\n" +
	"- Keep every amount positive; use the \"type\" field (\"debit\" for " +
	"money out, \"credit\" for money in) to carry the sign.\n" +
	"- If the statement has separate paid-out/paid-in columns, map paid-out " +
	"to debit and paid-in to credit.\n" +
	"- Also report the bank name, the last 4 digits of the account number, " +
	"the statement period, and the statement currency when visible; use " +
	"empty strings when not.\n" +
	"- Output must conform exactly to the provided JSON schema."

// Failure wraps a backend error with its category so the chain can report
// actionable failures per provider.
type Failure struct {
	Provider string
	Category domain.FailureCategory
	Err      error
}

func (f *Failure) Error() string {
	return f.Provider + ": " + string(f.Category) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(provider string, category domain.FailureCategory, err error) *Failure {
	return &Failure{Provider: provider, Category: category, Err: err}
}

// categorizeStatus maps an HTTP-ish status code and message to a failure
// category.
func categorizeStatus(status int, message string) domain.FailureCategory {
	lower := strings.ToLower(message)
	switch {
	case status == 401 || status == 403:
		return domain.FailureAuth
	case status == 429 && (strings.Contains(lower, "quota") || strings.Contains(lower, "billing")):
		return domain.FailureQuota
	case status == 429:
		return domain.FailureRateLimit
	case status == 404 && strings.Contains(lower, "model"):
		return domain.FailureModelInvalid
	case strings.Contains(lower, "model not found") || strings.Contains(lower, "unknown model"):
		return domain.FailureModelInvalid
	case strings.Contains(lower, "api key") || strings.Contains(lower, "unauthorized"):
		return domain.FailureAuth
	default:
		return domain.FailureUnknown
	}
}
