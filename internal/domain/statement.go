package domain

import (
	"time"
)

// StatementStatus is the lifecycle state of an uploaded bank statement.
// Transitions: pending -> processing -> ready|failed -> imported. Deletion
// is not a stored state; it removes the record.
type StatementStatus string

const (
	StatusPending    StatementStatus = "pending"
	StatusProcessing StatementStatus = "processing"
	StatusReady      StatementStatus = "ready"
	StatusFailed     StatementStatus = "failed"
	StatusImported   StatementStatus = "imported"
)

// FileType selects the extraction pipeline for a statement.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
)

// BankStatement is the persisted record of one uploaded statement file and
// its extraction working set. It is owned by a single user; only the
// lifecycle manager mutates Status.
type BankStatement struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	FileName string   `json:"fileName"`
	FilePath string   `json:"filePath"`
	FileType FileType `json:"fileType"`
	Checksum string   `json:"checksum,omitempty"` // sha256 of the raw file

	// Detected bank metadata, filled by the AI pipeline when available.
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"` // last 4 only
	PeriodStart   string `json:"periodStart,omitempty"`
	PeriodEnd     string `json:"periodEnd,omitempty"`

	Status           StatementStatus `json:"status"`
	ExtractedData    *ExtractedData  `json:"extractedData,omitempty"`
	TransactionCount int             `json:"transactionCount"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	ImportedAt  *time.Time `json:"importedAt,omitempty"`
}

// Clone returns a deep copy including the extracted working set, so edits to
// the copy cannot leak into whatever handed it out.
func (s *BankStatement) Clone() *BankStatement {
	cp := *s
	cp.ExtractedData = s.ExtractedData.Clone()
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		cp.ProcessedAt = &t
	}
	if s.ImportedAt != nil {
		t := *s.ImportedAt
		cp.ImportedAt = &t
	}
	return &cp
}
