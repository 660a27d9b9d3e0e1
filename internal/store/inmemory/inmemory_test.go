package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/store"
)

func TestStatementStoreScopesByUser(t *testing.T) {
	s := NewStatementStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &domain.BankStatement{ID: "st-1", UserID: "alice", Status: domain.StatusPending}))

	_, err := s.Get(ctx, "bob", "st-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Get(ctx, "alice", "st-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	err = s.Delete(ctx, "bob", "st-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "alice", "st-1"))
}

func TestStatementStoreGetReturnsIsolatedCopy(t *testing.T) {
	s := NewStatementStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &domain.BankStatement{
		ID: "st-1", UserID: "alice", Status: domain.StatusReady,
		ExtractedData: &domain.ExtractedData{
			Transactions: []domain.ExtractedTransaction{
				{ID: "tx-1", Description: "COFFEE SHOP", Amount: 450},
			},
		},
	}))

	got, err := s.Get(ctx, "alice", "st-1")
	require.NoError(t, err)
	got.ExtractedData.Transactions[0].Description = "TAMPERED"
	got.ExtractedData.Transactions[0].Amount = 999

	again, err := s.Get(ctx, "alice", "st-1")
	require.NoError(t, err)
	assert.Equal(t, "COFFEE SHOP", again.ExtractedData.Transactions[0].Description,
		"mutating a returned statement must not touch stored state")
	assert.Equal(t, int64(450), again.ExtractedData.Transactions[0].Amount)
}

func TestStatementStoreListOrdersByCreatedAtDesc(t *testing.T) {
	s := NewStatementStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &domain.BankStatement{ID: "old", UserID: "u", CreatedAt: base}))
	require.NoError(t, s.Create(ctx, &domain.BankStatement{ID: "new", UserID: "u", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Create(ctx, &domain.BankStatement{ID: "other", UserID: "someone-else", CreatedAt: base}))

	list, err := s.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestTransactionStoreCreateManyIsAtomic(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()

	err := s.CreateMany(ctx, []domain.Transaction{
		{ID: "t1", UserID: "u", Name: "ok"},
		{ID: "", UserID: "u", Name: "bad"},
	})
	require.Error(t, err)
	assert.Equal(t, 0, s.Count(), "failed batch must not persist any rows")

	require.NoError(t, s.CreateMany(ctx, []domain.Transaction{
		{ID: "t1", UserID: "u", Name: "ok"},
		{ID: "t2", UserID: "u", Name: "also ok"},
	}))
	assert.Equal(t, 2, s.Count())
}

func TestTransactionStoreFindByHashes(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()

	require.NoError(t, s.CreateMany(ctx, []domain.Transaction{
		{ID: "t1", UserID: "u", TransactionHash: "aaa"},
		{ID: "t2", UserID: "other", TransactionHash: "bbb"},
	}))

	found, err := s.FindByHashes(ctx, "u", []string{"aaa", "bbb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"aaa": "t1"}, found)
}

func TestTransactionStoreFindCandidatesFilters(t *testing.T) {
	s := NewTransactionStore()
	ctx := context.Background()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateMany(ctx, []domain.Transaction{
		{ID: "match", UserID: "u", TotalAmount: -4500, IssuedAt: day, SourceType: domain.SourceInvoice},
		{ID: "linked", UserID: "u", TotalAmount: 4500, IssuedAt: day, SourceType: domain.SourceInvoice, LinkedTransactionID: "x"},
		{ID: "bank", UserID: "u", TotalAmount: 4500, IssuedAt: day, SourceType: domain.SourceBankImport},
		{ID: "outside", UserID: "u", TotalAmount: 4500, IssuedAt: day.AddDate(0, 0, 20), SourceType: domain.SourceInvoice},
		{ID: "wrong-amount", UserID: "u", TotalAmount: 9999, IssuedAt: day, SourceType: domain.SourceInvoice},
	}))

	got, err := s.FindCandidates(ctx, "u", 4500, day.AddDate(0, 0, -7), day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "match", got[0].ID, "absolute amount matches signed rows")
}
