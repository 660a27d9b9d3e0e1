// Package extract turns raw statement files into the extracted-transaction
// working set, via either deterministic CSV parsing or AI extraction. Both
// paths produce the same shape.
package extract

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerline/statements/internal/csvformat"
	"github.com/ledgerline/statements/internal/dedupe"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/normalize"
)

// Confidence assigned per extraction method.
const (
	csvConfidence = 1.0
	aiConfidence  = 0.9
)

// CSVOptions configures the deterministic pipeline.
type CSVOptions struct {
	// Mapping overrides auto-detection when set.
	Mapping *domain.CSVColumnMapping
	// DefaultCurrency is used when the file has no currency column.
	DefaultCurrency string
	// DefaultType applies when the amount carries no sign and there is no
	// type column. Defaults to credit.
	DefaultType domain.TransactionType
	// DateOrder resolves ambiguous numeric dates. Defaults to day-first.
	DateOrder normalize.DateOrder
}

// FromCSV extracts transactions from raw CSV text. Rows that fail to
// normalize are skipped with a warning; only an entirely empty result is
// fatal.
func FromCSV(text string, opts CSVOptions) (*domain.ExtractedData, error) {
	info, err := csvformat.Detect(text)
	if err != nil {
		return nil, err
	}

	mapping := opts.Mapping
	if mapping == nil {
		mapping = info.Mapping
	}
	if mapping == nil {
		return nil, domain.NewParseError(
			"could not detect a column mapping; provide one explicitly", "")
	}
	info.Mapping = mapping

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = []rune(info.Delimiter)[0]
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewParseError("unreadable CSV", err.Error())
	}

	start := 0
	if info.HasHeaders {
		start = 1
	}

	defaultType := opts.DefaultType
	if defaultType == "" {
		defaultType = domain.TypeCredit
	}
	currency := opts.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}

	var (
		txs      []domain.ExtractedTransaction
		warnings []string
	)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}

		dateCell := cell(row, mapping.Date)
		amountCell := cell(row, mapping.Amount)
		if dateCell == "" || amountCell == "" {
			continue
		}

		tx, err := buildRow(row, mapping, dateCell, amountCell, defaultType, currency, opts.DateOrder)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d skipped: %v", i+1, err))
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, domain.NewParseError("no valid transactions found", "")
	}

	data := &domain.ExtractedData{
		Transactions: txs,
		ParsingMetadata: domain.ParsingMetadata{
			Method:   "csv",
			Warnings: warnings,
			Format:   info,
		},
	}
	data.RecomputeSummary()
	return data, nil
}

func buildRow(row []string, mapping *domain.CSVColumnMapping, dateCell, amountCell string,
	defaultType domain.TransactionType, defaultCurrency string, order normalize.DateOrder,
) (domain.ExtractedTransaction, error) {
	date, err := normalize.Date(dateCell, order)
	if err != nil {
		return domain.ExtractedTransaction{}, err
	}

	amount, txType, err := normalize.Amount(amountCell, defaultType)
	if err != nil {
		return domain.ExtractedTransaction{}, err
	}

	// An explicit type column overrides the sign-inferred type.
	if mapping.Type != nil {
		if explicit, ok := parseTypeCell(cell(row, *mapping.Type)); ok {
			txType = explicit
		}
	}

	currency := defaultCurrency
	if mapping.Currency != nil {
		if c := strings.ToUpper(cell(row, *mapping.Currency)); len(c) == 3 {
			currency = c
		}
	}

	description := cell(row, mapping.Description)

	return domain.ExtractedTransaction{
		ID:          uuid.NewString(),
		Date:        date,
		Description: description,
		Amount:      amount,
		Type:        txType,
		Currency:    currency,
		Confidence:  csvConfidence,
		Selected:    true,
		Hash:        dedupe.Hash(date, amount, description),
	}, nil
}

// parseTypeCell recognizes explicit debit/credit markers.
func parseTypeCell(value string) (domain.TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "credit", "c", "cr":
		return domain.TypeCredit, true
	case "debit", "d", "db":
		return domain.TypeDebit, true
	default:
		return "", false
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
