package statement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statements/internal/dedupe"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/filestore"
	"github.com/ledgerline/statements/internal/jobs"
	"github.com/ledgerline/statements/internal/provider"
	storeinmem "github.com/ledgerline/statements/internal/store/inmemory"
)

const sampleCSV = "Date,Description,Amount\n" +
	"13/01/2024,COFFEE SHOP,-4.50\n" +
	"15/01/2024,SALARY,2500.00\n"

type capturePublisher struct {
	mu        sync.Mutex
	published []*jobs.ProcessStatementJob
}

func (p *capturePublisher) PublishProcessStatement(ctx context.Context, job *jobs.ProcessStatementJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, job)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type stubExtractor struct {
	result  *provider.StatementExtraction
	lastReq provider.ExtractRequest
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, req provider.ExtractRequest) (*provider.StatementExtraction, error) {
	s.lastReq = req
	return s.result, nil
}

type testEnv struct {
	svc          *Service
	statements   *storeinmem.StatementStore
	transactions *storeinmem.TransactionStore
	publisher    *capturePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		statements:   storeinmem.NewStatementStore(),
		transactions: storeinmem.NewTransactionStore(),
		publisher:    &capturePublisher{},
	}
	env.svc = NewService(env.statements, env.transactions, files, env.publisher,
		nil, Options{DefaultCurrency: "USD"}, zerolog.Nop())
	return env
}

// uploadAndProcess drives a CSV statement to the ready state.
func uploadAndProcess(t *testing.T, env *testEnv, userID, csv string) *domain.BankStatement {
	t.Helper()
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, userID, "statement.csv", []byte(csv))
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(ctx, userID, st.ID))

	st, err = env.svc.Get(ctx, userID, st.ID)
	require.NoError(t, err)
	return st
}

func TestUploadCreatesPendingStatementAndEnqueuesJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "january.csv", []byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, st.Status)
	assert.Equal(t, domain.FileTypeCSV, st.FileType)
	assert.Equal(t, filestore.Checksum([]byte(sampleCSV)), st.Checksum)
	assert.NotEmpty(t, st.FilePath)

	require.Len(t, env.publisher.published, 1)
	job := env.publisher.published[0]
	assert.Equal(t, st.ID, job.StatementID)
	assert.Equal(t, "u-1", job.UserID)
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Upload(context.Background(), "u-1", "statement.xlsx", []byte("data"))
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Empty(t, env.publisher.published)
}

func TestProcessCSVMovesStatementToReady(t *testing.T) {
	env := newTestEnv(t)
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	assert.Equal(t, domain.StatusReady, st.Status)
	assert.NotNil(t, st.ProcessedAt)
	assert.Equal(t, 2, st.TransactionCount)
	require.NotNil(t, st.ExtractedData)

	coffee := st.ExtractedData.Transactions[0]
	assert.Equal(t, "2024-01-13", coffee.Date)
	assert.Equal(t, int64(450), coffee.Amount)
	assert.Equal(t, domain.TypeDebit, coffee.Type)
	assert.False(t, coffee.IsDuplicate)
}

func TestProcessAnnotatesDuplicatesAgainstLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existingHash := dedupe.Hash("2024-01-13", 450, "COFFEE SHOP")
	require.NoError(t, env.transactions.CreateMany(ctx, []domain.Transaction{
		{ID: "ledger-1", UserID: "u-1", TransactionHash: existingHash},
	}))

	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	coffee := st.ExtractedData.Transactions[0]
	assert.True(t, coffee.IsDuplicate)
	assert.Equal(t, "ledger-1", coffee.DuplicateOf)
	assert.False(t, st.ExtractedData.Transactions[1].IsDuplicate)
}

func TestProcessUnmappableCSVMarksStatementFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "odd.csv", []byte("A,B,C\n13/01/2024,COFFEE,4.50\n"))
	require.NoError(t, err)

	// Extraction failure is recorded on the statement, not returned.
	require.NoError(t, env.svc.Process(ctx, "u-1", st.ID))

	st, err = env.svc.Get(ctx, "u-1", st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, st.Status)
	assert.NotEmpty(t, st.ErrorMessage)
}

func TestProcessUnreadablePDFMarksStatementFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "scan.pdf", []byte("not really a pdf"))
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(ctx, "u-1", st.ID))

	st, err = env.svc.Get(ctx, "u-1", st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, st.Status)
}

func TestProcessImageUsesAIPipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stub := &stubExtractor{result: &provider.StatementExtraction{
		Currency: "GBP",
		Transactions: []provider.ExtractedEntry{
			{Date: "2024-01-13", Description: "COFFEE SHOP", Amount: -4.50},
		},
	}}
	env.svc.extractor = stub

	st, err := env.svc.Upload(ctx, "u-1", "receipt.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeImage, st.FileType)

	require.NoError(t, env.svc.Process(ctx, "u-1", st.ID))

	st, err = env.svc.Get(ctx, "u-1", st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, st.Status)
	assert.Equal(t, "ai", st.ExtractedData.ParsingMetadata.Method)
	require.Len(t, st.ExtractedData.Transactions, 1)
	assert.Equal(t, domain.TypeDebit, st.ExtractedData.Transactions[0].Type)

	require.Len(t, stub.lastReq.Pages, 1)
	assert.Equal(t, "image/png", stub.lastReq.Pages[0].MIMEType)
}

func TestProcessRejectsWrongStatus(t *testing.T) {
	env := newTestEnv(t)
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	err := env.svc.Process(context.Background(), "u-1", st.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateExtractedDataEditRecomputesHashAndSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	tx := st.ExtractedData.Transactions[0]
	oldHash := tx.Hash
	newAmount := int64(999)

	st, err := env.svc.UpdateExtracted(ctx, "u-1", st.ID, []TransactionEdit{
		{ID: tx.ID, Amount: &newAmount},
	})
	require.NoError(t, err)

	edited := st.ExtractedData.Transaction(tx.ID)
	require.NotNil(t, edited)
	assert.True(t, edited.Edited)
	assert.Equal(t, int64(999), edited.Amount)
	assert.NotEqual(t, oldHash, edited.Hash)
	assert.Equal(t, dedupe.Hash(edited.Date, 999, edited.Description), edited.Hash)

	assert.Equal(t, int64(999), st.ExtractedData.Summary.TotalDebits,
		"summary must reflect the edited amount")
}

func TestUpdateExtractedEditCanClearDuplicateFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existingHash := dedupe.Hash("2024-01-13", 450, "COFFEE SHOP")
	require.NoError(t, env.transactions.CreateMany(ctx, []domain.Transaction{
		{ID: "ledger-1", UserID: "u-1", TransactionHash: existingHash},
	}))

	st := uploadAndProcess(t, env, "u-1", sampleCSV)
	tx := st.ExtractedData.Transactions[0]
	require.True(t, tx.IsDuplicate)

	desc := "COFFEE SHOP DOWNTOWN"
	st, err := env.svc.UpdateExtracted(ctx, "u-1", st.ID, []TransactionEdit{
		{ID: tx.ID, Description: &desc},
	})
	require.NoError(t, err)

	edited := st.ExtractedData.Transaction(tx.ID)
	assert.False(t, edited.IsDuplicate, "new content hash no longer matches the ledger")
	assert.Empty(t, edited.DuplicateOf)
}

func TestUpdateExtractedSelectionOnlyDoesNotMarkEdited(t *testing.T) {
	env := newTestEnv(t)
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	tx := st.ExtractedData.Transactions[0]
	deselect := false
	st, err := env.svc.UpdateExtracted(context.Background(), "u-1", st.ID, []TransactionEdit{
		{ID: tx.ID, Selected: &deselect},
	})
	require.NoError(t, err)

	updated := st.ExtractedData.Transaction(tx.ID)
	assert.False(t, updated.Selected)
	assert.False(t, updated.Edited)
	assert.Equal(t, tx.Hash, updated.Hash)
}

func TestUpdateExtractedRejectsNegativeAmount(t *testing.T) {
	env := newTestEnv(t)
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	bad := int64(-5)
	_, err := env.svc.UpdateExtracted(context.Background(), "u-1", st.ID, []TransactionEdit{
		{ID: st.ExtractedData.Transactions[0].ID, Amount: &bad},
	})
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestUpdateExtractedFailedBatchLeavesNoPartialEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	first := st.ExtractedData.Transactions[0]
	second := st.ExtractedData.Transactions[1]
	newDesc := "EDITED DESCRIPTION"
	badAmount := int64(-100)

	_, err := env.svc.UpdateExtracted(ctx, "u-1", st.ID, []TransactionEdit{
		{ID: first.ID, Description: &newDesc},
		{ID: second.ID, Amount: &badAmount},
	})
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)

	st, err = env.svc.Get(ctx, "u-1", st.ID)
	require.NoError(t, err)
	kept := st.ExtractedData.Transaction(first.ID)
	require.NotNil(t, kept)
	assert.Equal(t, "COFFEE SHOP", kept.Description,
		"failed update must not leave partial edits behind")
	assert.False(t, kept.Edited)
	assert.Equal(t, first.Hash, kept.Hash)
}

func TestRemapColumnsRecoversFailedStatement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "odd.csv", []byte("A,B,C\n13/01/2024,COFFEE,4.50\n"))
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(ctx, "u-1", st.ID))

	st, err = env.svc.RemapColumns(ctx, "u-1", st.ID, domain.CSVColumnMapping{
		Date: 0, Description: 1, Amount: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReady, st.Status)
	require.Len(t, st.ExtractedData.Transactions, 1)
	assert.Equal(t, "2024-01-13", st.ExtractedData.Transactions[0].Date)
	assert.Equal(t, "COFFEE", st.ExtractedData.Transactions[0].Description)
}

func TestRemapColumnsRejectsPDF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "scan.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, env.svc.Process(ctx, "u-1", st.ID))

	_, err = env.svc.RemapColumns(ctx, "u-1", st.ID, domain.CSVColumnMapping{Date: 0, Description: 1, Amount: 2})
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestSuggestMatchesRanksLedgerCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	day := time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.transactions.CreateMany(ctx, []domain.Transaction{
		{ID: "inv-1", UserID: "u-1", Name: "Coffee shop invoice", TotalAmount: -450,
			IssuedAt: day, SourceType: domain.SourceInvoice},
	}))

	st := uploadAndProcess(t, env, "u-1", sampleCSV)
	tx := st.ExtractedData.Transactions[0]

	suggestions, err := env.svc.SuggestMatches(ctx, "u-1", st.ID, tx.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "inv-1", suggestions[0].TransactionID)
	assert.Greater(t, suggestions[0].Confidence, 0.5)
}

func TestDeleteBlockedWhileProcessing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	st, err := env.svc.Upload(ctx, "u-1", "statement.csv", []byte(sampleCSV))
	require.NoError(t, err)

	st.Status = domain.StatusProcessing
	require.NoError(t, env.statements.Update(ctx, st))

	err = env.svc.Delete(ctx, "u-1", st.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteImportedKeepsLedgerRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := uploadAndProcess(t, env, "u-1", sampleCSV)

	result, err := env.svc.Import(ctx, "u-1", st.ID, nil, ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.ImportedCount)

	require.NoError(t, env.svc.Delete(ctx, "u-1", st.ID))
	assert.Equal(t, 2, env.transactions.Count(), "imported rows survive statement deletion")
}
