// Package statement implements the statement lifecycle: upload, async
// extraction, review edits, reconciliation suggestions, and the final
// atomic import into the transaction ledger.
package statement

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerline/statements/internal/dedupe"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/extract"
	"github.com/ledgerline/statements/internal/filestore"
	"github.com/ledgerline/statements/internal/jobs"
	"github.com/ledgerline/statements/internal/normalize"
	"github.com/ledgerline/statements/internal/provider"
	"github.com/ledgerline/statements/internal/reconcile"
	"github.com/ledgerline/statements/internal/store"
)

// ErrInvalidState is returned when an operation is not allowed in the
// statement's current lifecycle status.
var ErrInvalidState = errors.New("operation not allowed in current statement status")

// Options carries extraction defaults.
type Options struct {
	DefaultCurrency string
	DateOrder       normalize.DateOrder
	MaxPDFPages     int
}

// Service orchestrates the statement lifecycle. Only the service mutates
// statement status.
type Service struct {
	statements   store.StatementStore
	transactions store.TransactionStore
	files        filestore.FileStore
	publisher    jobs.Publisher
	extractor    provider.Extractor
	dedupe       *dedupe.Engine
	matcher      *reconcile.Matcher
	opts         Options
	log          zerolog.Logger
}

func NewService(
	statements store.StatementStore,
	transactions store.TransactionStore,
	files filestore.FileStore,
	publisher jobs.Publisher,
	extractor provider.Extractor,
	opts Options,
	log zerolog.Logger,
) *Service {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &Service{
		statements:   statements,
		transactions: transactions,
		files:        files,
		publisher:    publisher,
		extractor:    extractor,
		dedupe:       dedupe.NewEngine(transactions),
		matcher:      reconcile.NewMatcher(transactions, reconcile.DefaultTopK),
		opts:         opts,
		log:          log,
	}
}

// Upload stores the file, creates a pending statement, and enqueues a
// processing job.
func (s *Service) Upload(ctx context.Context, userID, fileName string, data []byte) (*domain.BankStatement, error) {
	if len(data) == 0 {
		return nil, domain.NewParseError("empty file", fileName)
	}

	fileType, err := fileTypeFor(fileName)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	uri, err := s.files.Write(ctx, userID+"/"+id+"/"+filepath.Base(fileName), data)
	if err != nil {
		return nil, fmt.Errorf("store statement file: %w", err)
	}

	now := time.Now().UTC()
	st := &domain.BankStatement{
		ID:        id,
		UserID:    userID,
		FileName:  fileName,
		FilePath:  uri,
		FileType:  fileType,
		Checksum:  filestore.Checksum(data),
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.statements.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create statement: %w", err)
	}

	err = s.publisher.PublishProcessStatement(ctx, &jobs.ProcessStatementJob{
		StatementID: st.ID,
		UserID:      userID,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue processing job: %w", err)
	}

	s.log.Info().Str("statement_id", st.ID).Str("file_type", string(fileType)).
		Msg("statement uploaded")
	return st, nil
}

// HandleJob adapts Process to the queue's handler signature.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	pj, ok := job.(*jobs.ProcessStatementJob)
	if !ok {
		return fmt.Errorf("unexpected job type %T", job)
	}
	return s.Process(ctx, pj.UserID, pj.StatementID)
}

// Process runs the extraction pipeline for a pending statement. Extraction
// errors (unparseable file, all providers failed) are terminal for the
// attempt: they mark the statement failed and are not returned, so the queue
// does not treat them as job failures.
func (s *Service) Process(ctx context.Context, userID, id string) error {
	st, err := s.statements.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if st.Status != domain.StatusPending && st.Status != domain.StatusFailed {
		return fmt.Errorf("%w: %s", ErrInvalidState, st.Status)
	}

	st.Status = domain.StatusProcessing
	st.ErrorMessage = ""
	st.UpdatedAt = time.Now().UTC()
	if err := s.statements.Update(ctx, st); err != nil {
		return err
	}

	data, err := s.files.Read(ctx, st.FilePath)
	if err != nil {
		return s.markFailed(ctx, st, fmt.Errorf("read statement file: %w", err))
	}

	extracted, err := s.runPipeline(ctx, st, data, nil)
	if err != nil {
		if isExtractionError(err) {
			return s.markFailed(ctx, st, err)
		}
		return err
	}

	return s.finishExtraction(ctx, st, extracted)
}

// runPipeline picks the extraction path by file type. mapping, when set,
// overrides CSV column detection.
func (s *Service) runPipeline(ctx context.Context, st *domain.BankStatement, data []byte, mapping *domain.CSVColumnMapping) (*domain.ExtractedData, error) {
	switch st.FileType {
	case domain.FileTypeCSV:
		return extract.FromCSV(string(data), extract.CSVOptions{
			Mapping:         mapping,
			DefaultCurrency: s.opts.DefaultCurrency,
			DateOrder:       s.opts.DateOrder,
		})
	case domain.FileTypePDF, domain.FileTypeImage:
		pipeline := extract.NewAIPipeline(s.extractor, s.log)
		return pipeline.FromFile(ctx, data, extract.AIOptions{
			DefaultCurrency: s.opts.DefaultCurrency,
			DateOrder:       s.opts.DateOrder,
			MaxPages:        s.opts.MaxPDFPages,
			MIMEType:        mimeTypeFor(st.FileType, st.FileName),
		})
	default:
		return nil, domain.NewParseError("unsupported file type", string(st.FileType))
	}
}

// finishExtraction annotates duplicates, copies detected metadata onto the
// statement, and moves it to ready.
func (s *Service) finishExtraction(ctx context.Context, st *domain.BankStatement, extracted *domain.ExtractedData) error {
	if err := s.dedupe.Annotate(ctx, st.UserID, extracted.Transactions); err != nil {
		return fmt.Errorf("annotate duplicates: %w", err)
	}

	now := time.Now().UTC()
	st.ExtractedData = extracted
	st.TransactionCount = len(extracted.Transactions)
	st.BankName = extracted.ParsingMetadata.BankName
	st.AccountNumber = extracted.ParsingMetadata.AccountNumber
	st.PeriodStart = extracted.ParsingMetadata.PeriodStart
	st.PeriodEnd = extracted.ParsingMetadata.PeriodEnd
	st.Status = domain.StatusReady
	st.ErrorMessage = ""
	st.ProcessedAt = &now
	st.UpdatedAt = now

	if err := s.statements.Update(ctx, st); err != nil {
		return err
	}

	s.log.Info().Str("statement_id", st.ID).Int("transactions", st.TransactionCount).
		Str("method", extracted.ParsingMetadata.Method).Msg("statement extracted")
	return nil
}

func (s *Service) markFailed(ctx context.Context, st *domain.BankStatement, cause error) error {
	now := time.Now().UTC()
	st.Status = domain.StatusFailed
	st.ErrorMessage = cause.Error()
	st.ProcessedAt = &now
	st.UpdatedAt = now

	if err := s.statements.Update(ctx, st); err != nil {
		return err
	}

	s.log.Warn().Str("statement_id", st.ID).Err(cause).Msg("statement extraction failed")
	return nil
}

// Get returns the full statement including its extracted working set.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.BankStatement, error) {
	return s.statements.Get(ctx, userID, id)
}

// List returns the user's statements, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.BankStatement, error) {
	return s.statements.ListByUser(ctx, userID)
}

// TransactionEdit is a partial update to one extracted transaction. Nil
// fields are left unchanged.
type TransactionEdit struct {
	ID          string                  `json:"id"`
	Date        *string                 `json:"date,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Amount      *int64                  `json:"amount,omitempty"`
	Type        *domain.TransactionType `json:"type,omitempty"`
	Currency    *string                 `json:"currency,omitempty"`
	Selected    *bool                   `json:"selected,omitempty"`
}

// UpdateExtracted applies review edits to a ready statement. Data edits mark
// the transaction edited, recompute its content hash, and re-check it
// against the ledger; toggling selection alone does neither. The summary is
// recomputed after every call.
func (s *Service) UpdateExtracted(ctx context.Context, userID, id string, edits []TransactionEdit) (*domain.BankStatement, error) {
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

	for _, edit := range edits {
		tx := st.ExtractedData.Transaction(edit.ID)
		if tx == nil {
			return nil, fmt.Errorf("unknown transaction %s in statement %s", edit.ID, id)
		}

		dataEdit := false
		if edit.Date != nil {
			date, err := normalize.Date(*edit.Date, s.opts.DateOrder)
			if err != nil {
				return nil, err
			}
			tx.Date = date
			dataEdit = true
		}
		if edit.Description != nil {
			tx.Description = *edit.Description
			dataEdit = true
		}
		if edit.Amount != nil {
			if *edit.Amount < 0 {
				return nil, domain.NewParseError("amount must not be negative", fmt.Sprint(*edit.Amount))
			}
			tx.Amount = *edit.Amount
			dataEdit = true
		}
		if edit.Type != nil {
			if *edit.Type != domain.TypeDebit && *edit.Type != domain.TypeCredit {
				return nil, domain.NewParseError("unknown transaction type", string(*edit.Type))
			}
			tx.Type = *edit.Type
			dataEdit = true
		}
		if edit.Currency != nil {
			tx.Currency = *edit.Currency
			dataEdit = true
		}
		if edit.Selected != nil {
			tx.Selected = *edit.Selected
		}

		if dataEdit {
			tx.Edited = true
			tx.Hash = dedupe.Hash(tx.Date, tx.Amount, tx.Description)

			dupID, isDup, err := s.dedupe.FindDuplicate(ctx, userID, tx.Hash)
			if err != nil {
				return nil, fmt.Errorf("re-check duplicate: %w", err)
			}
			tx.IsDuplicate = isDup
			tx.DuplicateOf = dupID
		}
	}

	st.ExtractedData.RecomputeSummary()
	st.TransactionCount = len(st.ExtractedData.Transactions)
	st.UpdatedAt = time.Now().UTC()

	if err := s.statements.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RemapColumns re-runs CSV extraction with an explicit column mapping.
// Allowed from ready or failed, so a bad auto-detection can be corrected.
func (s *Service) RemapColumns(ctx context.Context, userID, id string, mapping domain.CSVColumnMapping) (*domain.BankStatement, error) {
	st, err := s.statements.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if st.FileType != domain.FileTypeCSV {
		return nil, domain.NewParseError("column remapping applies to CSV statements only", string(st.FileType))
	}
	if st.Status != domain.StatusReady && st.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, st.Status)
	}

	data, err := s.files.Read(ctx, st.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read statement file: %w", err)
	}

	extracted, err := s.runPipeline(ctx, st, data, &mapping)
	if err != nil {
		return nil, err
	}

	if err := s.finishExtraction(ctx, st, extracted); err != nil {
		return nil, err
	}
	return st, nil
}

// SuggestMatches returns ranked reconciliation candidates for one extracted
// transaction of a ready statement.
func (s *Service) SuggestMatches(ctx context.Context, userID, id, txID string) ([]domain.MatchSuggestion, error) {
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

	tx := st.ExtractedData.Transaction(txID)
	if tx == nil {
		return nil, fmt.Errorf("unknown transaction %s in statement %s", txID, id)
	}
	return s.matcher.Suggest(ctx, userID, tx)
}

// Delete removes a statement in any state except processing. Deleting an
// imported statement leaves its persisted transactions in the ledger.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	st, err := s.statements.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if st.Status == domain.StatusProcessing {
		return fmt.Errorf("%w: %s", ErrInvalidState, st.Status)
	}
	return s.statements.Delete(ctx, userID, id)
}

// isExtractionError reports whether the error is a terminal extraction
// outcome rather than an infrastructure failure.
func isExtractionError(err error) bool {
	var parseErr *domain.ParseError
	var provErr *domain.ProviderError
	return errors.As(err, &parseErr) || errors.As(err, &provErr)
}

func fileTypeFor(fileName string) (domain.FileType, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return domain.FileTypeCSV, nil
	case ".pdf":
		return domain.FileTypePDF, nil
	case ".png", ".jpg", ".jpeg", ".webp":
		return domain.FileTypeImage, nil
	default:
		return "", domain.NewParseError("unsupported file type; expected .csv, .pdf, or an image", fileName)
	}
}

// mimeTypeFor resolves the attachment MIME type sent to the extraction
// providers. Image statements carry the type of the uploaded file.
func mimeTypeFor(fileType domain.FileType, fileName string) string {
	if fileType != domain.FileTypeImage {
		return "application/pdf"
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
