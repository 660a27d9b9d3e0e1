package extract

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/statements/internal/dedupe"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/normalize"
	"github.com/ledgerline/statements/internal/provider"
	"github.com/ledgerline/statements/internal/render"
)

// AIOptions configures the AI extraction pipeline.
type AIOptions struct {
	// DefaultCurrency applies when the statement currency is not detected.
	DefaultCurrency string
	// DateOrder disambiguates numeric dates in provider responses.
	DateOrder normalize.DateOrder
	// MaxPages caps how many pages are rendered. Defaults to render.MaxPages.
	MaxPages int
	// MIMEType of the input file; "application/pdf" selects the PDF
	// renderer, image types are attached directly.
	MIMEType string
}

// AIPipeline extracts transactions from rendered statement pages through a
// provider fallback chain.
type AIPipeline struct {
	extractor provider.Extractor
	log       zerolog.Logger
}

// NewAIPipeline builds the pipeline over the given extractor, usually a
// provider.Chain.
func NewAIPipeline(extractor provider.Extractor, log zerolog.Logger) *AIPipeline {
	return &AIPipeline{extractor: extractor, log: log}
}

var nonDigits = regexp.MustCompile(`\D`)

// FromFile renders the file into page attachments, issues one
// schema-constrained extraction request, and normalizes the result into the
// extracted-transaction shape with confidence 0.9. Zero returned
// transactions is a ParseError; provider failures surface as a single
// aggregated ProviderError.
func (p *AIPipeline) FromFile(ctx context.Context, data []byte, opts AIOptions) (*domain.ExtractedData, error) {
	var pages []provider.Page
	if opts.MIMEType == "application/pdf" || opts.MIMEType == "" {
		var err error
		pages, err = render.PDFPages(data, opts.MaxPages)
		if err != nil {
			return nil, err
		}
	} else {
		pages = render.ImagePage(data, opts.MIMEType)
	}

	result, err := p.extractor.Extract(ctx, provider.ExtractRequest{
		Prompt: provider.ExtractionPrompt,
		Pages:  pages,
	})
	if err != nil {
		return nil, err
	}

	if len(result.Transactions) == 0 {
		return nil, domain.NewParseError("no transactions returned by extraction provider", "")
	}

	currency := result.Currency
	if len(currency) != 3 {
		currency = opts.DefaultCurrency
	}
	if currency == "" {
		currency = "USD"
	}

	var (
		txs      []domain.ExtractedTransaction
		warnings []string
	)
	for _, entry := range result.Transactions {
		date, err := normalize.Date(entry.Date, opts.DateOrder)
		if err != nil {
			warnings = append(warnings, "entry skipped: "+err.Error())
			continue
		}

		amount := decimal.NewFromFloat(entry.Amount).Abs().
			Mul(decimal.NewFromInt(100)).Round(0).IntPart()

		txType := domain.TypeCredit
		if t, ok := parseTypeCell(entry.Type); ok {
			txType = t
		} else if entry.Amount < 0 {
			txType = domain.TypeDebit
		}

		txs = append(txs, domain.ExtractedTransaction{
			ID:          uuid.NewString(),
			Date:        date,
			Description: entry.Description,
			Amount:      amount,
			Type:        txType,
			Currency:    currency,
			Confidence:  aiConfidence,
			Selected:    true,
			Hash:        dedupe.Hash(date, amount, entry.Description),
		})
	}

	if len(txs) == 0 {
		return nil, domain.NewParseError("no valid transactions in provider response", "")
	}

	extracted := &domain.ExtractedData{
		Transactions: txs,
		ParsingMetadata: domain.ParsingMetadata{
			Method:        "ai",
			BankName:      result.BankName,
			AccountNumber: lastFour(result.AccountNumber),
			PeriodStart:   isoOrEmpty(result.PeriodStart, opts.DateOrder),
			PeriodEnd:     isoOrEmpty(result.PeriodEnd, opts.DateOrder),
			Warnings:      warnings,
		},
	}
	extracted.RecomputeSummary()
	return extracted, nil
}

// lastFour keeps only the last four digits of an account number.
func lastFour(accountNumber string) string {
	digits := nonDigits.ReplaceAllString(accountNumber, "")
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func isoOrEmpty(raw string, order normalize.DateOrder) string {
	if raw == "" {
		return ""
	}
	date, err := normalize.Date(raw, order)
	if err != nil {
		return ""
	}
	return date
}
