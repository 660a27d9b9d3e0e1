// Package inmemory provides map-backed stores, used in tests and for
// running the service without a database.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/store"
)

// StatementStore keeps statements in memory, keyed by id.
type StatementStore struct {
	mu         sync.RWMutex
	statements map[string]*domain.BankStatement
}

func NewStatementStore() *StatementStore {
	return &StatementStore{statements: make(map[string]*domain.BankStatement)}
}

func (s *StatementStore) Create(ctx context.Context, st *domain.BankStatement) error {
	if st.ID == "" {
		return fmt.Errorf("statement ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[st.ID]; exists {
		return fmt.Errorf("statement %s already exists", st.ID)
	}
	s.statements[st.ID] = st.Clone()
	return nil
}

func (s *StatementStore) Get(ctx context.Context, userID, id string) (*domain.BankStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok || st.UserID != userID {
		return nil, store.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *StatementStore) Update(ctx context.Context, st *domain.BankStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.statements[st.ID]
	if !ok || existing.UserID != st.UserID {
		return store.ErrNotFound
	}
	s.statements[st.ID] = st.Clone()
	return nil
}

func (s *StatementStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[id]
	if !ok || st.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.statements, id)
	return nil
}

func (s *StatementStore) ListByUser(ctx context.Context, userID string) ([]*domain.BankStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BankStatement
	for _, st := range s.statements {
		if st.UserID != userID {
			continue
		}
		result = append(result, st.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// TransactionStore keeps imported transactions in memory.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{transactions: make(map[string]*domain.Transaction)}
}

func (s *TransactionStore) FindByHashes(ctx context.Context, userID string, hashes []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		want[h] = struct{}{}
	}

	found := make(map[string]string)
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if _, ok := want[tx.TransactionHash]; ok {
			found[tx.TransactionHash] = tx.ID
		}
	}
	return found, nil
}

func (s *TransactionStore) FindCandidates(ctx context.Context, userID string, amount int64, start, end time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.LinkedTransactionID != "" || tx.SourceType == domain.SourceBankImport {
			continue
		}
		if abs64(tx.TotalAmount) != amount {
			continue
		}
		if tx.IssuedAt.Before(start) || tx.IssuedAt.After(end) {
			continue
		}
		result = append(result, *tx)
	}
	return result, nil
}

// CreateMany validates every record before inserting any, so a bad record
// leaves the store untouched.
func (s *TransactionStore) CreateMany(ctx context.Context, records []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		if records[i].ID == "" {
			return fmt.Errorf("transaction %d: ID is required", i)
		}
		if records[i].UserID == "" {
			return fmt.Errorf("transaction %d: user ID is required", i)
		}
		if _, exists := s.transactions[records[i].ID]; exists {
			return fmt.Errorf("transaction %s already exists", records[i].ID)
		}
	}
	for i := range records {
		cp := records[i]
		s.transactions[cp.ID] = &cp
	}
	return nil
}

// Get returns a transaction by id, for tests.
func (s *TransactionStore) Get(id string) (*domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	cp := *tx
	return &cp, true
}

// Count returns the number of stored transactions, for tests.
func (s *TransactionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ store.StatementStore = (*StatementStore)(nil)
var _ store.TransactionStore = (*TransactionStore)(nil)
