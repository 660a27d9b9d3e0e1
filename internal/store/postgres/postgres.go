// Package postgres implements the store interfaces on PostgreSQL via
// pgx. Extracted working sets are stored as a JSONB column on the
// statements row; imported transactions get their own table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/store"
)

// Connect opens a pgx pool against the given database URL.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// StatementStore persists statements in the bank_statements table.
type StatementStore struct {
	pool *pgxpool.Pool
}

func NewStatementStore(pool *pgxpool.Pool) *StatementStore {
	return &StatementStore{pool: pool}
}

const statementColumns = `id, user_id, file_name, file_path, file_type, checksum,
	bank_name, account_number, period_start, period_end,
	status, extracted_data, transaction_count, error_message,
	created_at, updated_at, processed_at, imported_at`

func (s *StatementStore) Create(ctx context.Context, st *domain.BankStatement) error {
	extracted, err := marshalExtracted(st.ExtractedData)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO bank_statements (`+statementColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		st.ID, st.UserID, st.FileName, st.FilePath, st.FileType, st.Checksum,
		st.BankName, st.AccountNumber, st.PeriodStart, st.PeriodEnd,
		st.Status, extracted, st.TransactionCount, st.ErrorMessage,
		st.CreatedAt, st.UpdatedAt, st.ProcessedAt, st.ImportedAt)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

func (s *StatementStore) Get(ctx context.Context, userID, id string) (*domain.BankStatement, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+statementColumns+`
		FROM bank_statements
		WHERE id = $1 AND user_id = $2`, id, userID)

	st, err := scanStatement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}
	return st, nil
}

func (s *StatementStore) Update(ctx context.Context, st *domain.BankStatement) error {
	extracted, err := marshalExtracted(st.ExtractedData)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bank_statements SET
			bank_name = $3, account_number = $4, period_start = $5, period_end = $6,
			status = $7, extracted_data = $8, transaction_count = $9, error_message = $10,
			updated_at = $11, processed_at = $12, imported_at = $13
		WHERE id = $1 AND user_id = $2`,
		st.ID, st.UserID,
		st.BankName, st.AccountNumber, st.PeriodStart, st.PeriodEnd,
		st.Status, extracted, st.TransactionCount, st.ErrorMessage,
		st.UpdatedAt, st.ProcessedAt, st.ImportedAt)
	if err != nil {
		return fmt.Errorf("update statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StatementStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM bank_statements WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *StatementStore) ListByUser(ctx context.Context, userID string) ([]*domain.BankStatement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+statementColumns+`
		FROM bank_statements
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	var result []*domain.BankStatement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*domain.BankStatement, error) {
	var (
		st        domain.BankStatement
		extracted []byte
	)
	err := row.Scan(&st.ID, &st.UserID, &st.FileName, &st.FilePath, &st.FileType, &st.Checksum,
		&st.BankName, &st.AccountNumber, &st.PeriodStart, &st.PeriodEnd,
		&st.Status, &extracted, &st.TransactionCount, &st.ErrorMessage,
		&st.CreatedAt, &st.UpdatedAt, &st.ProcessedAt, &st.ImportedAt)
	if err != nil {
		return nil, err
	}
	if len(extracted) > 0 {
		var data domain.ExtractedData
		if err := json.Unmarshal(extracted, &data); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
		st.ExtractedData = &data
	}
	return &st, nil
}

func marshalExtracted(data *domain.ExtractedData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode extracted data: %w", err)
	}
	return b, nil
}

// TransactionStore persists imported transactions in the transactions table.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) FindByHashes(ctx context.Context, userID string, hashes []string) (map[string]string, error) {
	if len(hashes) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT transaction_hash, id
		FROM transactions
		WHERE user_id = $1 AND transaction_hash = ANY($2)`, userID, hashes)
	if err != nil {
		return nil, fmt.Errorf("find by hashes: %w", err)
	}
	defer rows.Close()

	found := make(map[string]string)
	for rows.Next() {
		var hash, id string
		if err := rows.Scan(&hash, &id); err != nil {
			return nil, fmt.Errorf("scan hash row: %w", err)
		}
		found[hash] = id
	}
	return found, rows.Err()
}

func (s *TransactionStore) FindCandidates(ctx context.Context, userID string, amount int64, start, end time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, total_amount, currency, issued_at,
			source_type, source_id, transaction_hash,
			COALESCE(linked_transaction_id, ''), COALESCE(category, ''), COALESCE(project, ''), created_at
		FROM transactions
		WHERE user_id = $1
			AND abs(total_amount) = $2
			AND issued_at BETWEEN $3 AND $4
			AND (linked_transaction_id IS NULL OR linked_transaction_id = '')
			AND source_type <> $5`,
		userID, amount, start, end, domain.SourceBankImport)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Name, &tx.TotalAmount, &tx.Currency, &tx.IssuedAt,
			&tx.SourceType, &tx.SourceID, &tx.TransactionHash,
			&tx.LinkedTransactionID, &tx.Category, &tx.Project, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// CreateMany inserts all records inside one transaction. Any failed insert
// rolls back the whole batch.
func (s *TransactionStore) CreateMany(ctx context.Context, records []domain.Transaction) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range records {
		r := &records[i]
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions
				(id, user_id, name, total_amount, currency, issued_at,
				 source_type, source_id, transaction_hash, category, project, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			r.ID, r.UserID, r.Name, r.TotalAmount, r.Currency, r.IssuedAt,
			r.SourceType, r.SourceID, r.TransactionHash, r.Category, r.Project, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ store.StatementStore = (*StatementStore)(nil)
var _ store.TransactionStore = (*TransactionStore)(nil)
