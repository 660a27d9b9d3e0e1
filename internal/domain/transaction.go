package domain

import (
	"time"
)

// TransactionType carries the sign of a transaction. Amounts are always
// non-negative; debit vs credit is the only place the sign lives.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// Source types for persisted transactions.
const (
	SourceBankImport = "bank-import"
	SourceInvoice    = "invoice"
	SourceManual     = "manual"
)

// ExtractedTransaction is one candidate transaction produced by an extraction
// pipeline. It lives inside a statement's working set and is not persisted
// on its own; the id is only unique within one extraction batch.
type ExtractedTransaction struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"` // canonical YYYY-MM-DD
	Description string          `json:"description"`
	Amount      int64           `json:"amount"` // minor units, always >= 0
	Type        TransactionType `json:"type"`
	Currency    string          `json:"currency"`
	Confidence  float64         `json:"confidence"`
	Edited      bool            `json:"edited"`
	Selected    bool            `json:"selected"`
	Hash        string          `json:"hash"`
	IsDuplicate bool            `json:"isDuplicate"`
	DuplicateOf string          `json:"duplicateOf,omitempty"`

	MatchSuggestions []MatchSuggestion `json:"matchSuggestions,omitempty"`
}

// SignedAmount returns the amount with the sign applied from the type:
// debits are negative, credits positive.
func (t *ExtractedTransaction) SignedAmount() int64 {
	if t.Type == TypeDebit {
		return -t.Amount
	}
	return t.Amount
}

// MatchSuggestion is a ranked link candidate between an extracted transaction
// and an existing invoice-like record. Suggestions are recomputed on demand
// and never persisted.
type MatchSuggestion struct {
	TransactionID   string  `json:"transactionId"`
	TransactionName string  `json:"transactionName"`
	Confidence      float64 `json:"confidence"`
}

// DateRange is the min/max of a batch's canonical dates. Lexicographic
// comparison is safe because the date format is fixed-width ISO.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExtractedSummary aggregates a batch of extracted transactions.
type ExtractedSummary struct {
	TotalDebits      int64     `json:"totalDebits"`
	TotalCredits     int64     `json:"totalCredits"`
	NetAmount        int64     `json:"netAmount"` // credits - debits
	TransactionCount int       `json:"transactionCount"`
	DateRange        DateRange `json:"dateRange"`
}

// ParsingMetadata reports how a statement was extracted, for user-facing
// confirmation during review.
type ParsingMetadata struct {
	Method        string         `json:"method"` // "csv" or "ai"
	Provider      string         `json:"provider,omitempty"`
	BankName      string         `json:"bankName,omitempty"`
	AccountNumber string         `json:"accountNumber,omitempty"` // last 4 only
	PeriodStart   string         `json:"periodStart,omitempty"`
	PeriodEnd     string         `json:"periodEnd,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Format        *CSVFormatInfo `json:"format,omitempty"`
}

// ExtractedData is the mutable working set attached to a statement during
// the review phase. The summary must be recomputed whenever a transaction
// changes; callers go through RecomputeSummary rather than editing it.
type ExtractedData struct {
	Transactions    []ExtractedTransaction `json:"transactions"`
	Summary         ExtractedSummary       `json:"summary"`
	ParsingMetadata ParsingMetadata        `json:"parsingMetadata"`
}

// RecomputeSummary rebuilds the summary from scratch over all transactions.
func (d *ExtractedData) RecomputeSummary() {
	d.Summary = Summarize(d.Transactions)
}

// Clone returns a deep copy of the working set. Stores hand out clones so
// staged edits never alias persisted state.
func (d *ExtractedData) Clone() *ExtractedData {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Transactions = make([]ExtractedTransaction, len(d.Transactions))
	for i := range d.Transactions {
		tx := d.Transactions[i]
		tx.MatchSuggestions = append([]MatchSuggestion(nil), tx.MatchSuggestions...)
		cp.Transactions[i] = tx
	}
	cp.ParsingMetadata.Warnings = append([]string(nil), d.ParsingMetadata.Warnings...)
	cp.ParsingMetadata.Format = d.ParsingMetadata.Format.Clone()
	return &cp
}

// Transaction returns the extracted transaction with the given batch-local
// id, or nil.
func (d *ExtractedData) Transaction(id string) *ExtractedTransaction {
	for i := range d.Transactions {
		if d.Transactions[i].ID == id {
			return &d.Transactions[i]
		}
	}
	return nil
}

// Summarize computes the aggregate summary for a batch of transactions.
func Summarize(txs []ExtractedTransaction) ExtractedSummary {
	s := ExtractedSummary{TransactionCount: len(txs)}
	for i := range txs {
		tx := &txs[i]
		switch tx.Type {
		case TypeDebit:
			s.TotalDebits += tx.Amount
		default:
			s.TotalCredits += tx.Amount
		}
		if tx.Date == "" {
			continue
		}
		if s.DateRange.Start == "" || tx.Date < s.DateRange.Start {
			s.DateRange.Start = tx.Date
		}
		if s.DateRange.End == "" || tx.Date > s.DateRange.End {
			s.DateRange.End = tx.Date
		}
	}
	s.NetAmount = s.TotalCredits - s.TotalDebits
	return s
}

// CSVColumnMapping maps logical fields to zero-based CSV column indexes.
// Type and Currency are optional; nil means the file has no such column.
type CSVColumnMapping struct {
	Date        int  `json:"date"`
	Description int  `json:"description"`
	Amount      int  `json:"amount"`
	Type        *int `json:"type,omitempty"`
	Currency    *int `json:"currency,omitempty"`
}

// Clone returns a deep copy.
func (m *CSVColumnMapping) Clone() *CSVColumnMapping {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Type != nil {
		v := *m.Type
		cp.Type = &v
	}
	if m.Currency != nil {
		v := *m.Currency
		cp.Currency = &v
	}
	return &cp
}

// CSVFormatInfo describes the detected shape of a CSV file.
type CSVFormatInfo struct {
	Delimiter  string            `json:"delimiter"`
	HasHeaders bool              `json:"hasHeaders"`
	Headers    []string          `json:"headers,omitempty"`
	SampleRows [][]string        `json:"sampleRows,omitempty"`
	Mapping    *CSVColumnMapping `json:"mapping,omitempty"`
}

// Clone returns a deep copy.
func (f *CSVFormatInfo) Clone() *CSVFormatInfo {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Headers = append([]string(nil), f.Headers...)
	if f.SampleRows != nil {
		cp.SampleRows = make([][]string, len(f.SampleRows))
		for i, row := range f.SampleRows {
			cp.SampleRows[i] = append([]string(nil), row...)
		}
	}
	cp.Mapping = f.Mapping.Clone()
	return &cp
}

// Transaction is the durable record created by the import committer. The
// store owning it is external to this core; these are the fields the core
// reads and writes.
type Transaction struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	Name                string    `json:"name"`
	TotalAmount         int64     `json:"totalAmount"` // signed minor units
	Currency            string    `json:"currency"`
	IssuedAt            time.Time `json:"issuedAt"`
	SourceType          string    `json:"sourceType"`
	SourceID            string    `json:"sourceId"`
	TransactionHash     string    `json:"transactionHash"`
	LinkedTransactionID string    `json:"linkedTransactionId,omitempty"`
	Category            string    `json:"category,omitempty"`
	Project             string    `json:"project,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}
