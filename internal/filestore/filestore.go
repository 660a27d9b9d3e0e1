// Package filestore abstracts where uploaded statement files live. The
// service stores a URI per statement and resolves it through a FileStore, so
// local disk and Google Cloud Storage are interchangeable.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// FileStore reads and writes statement files by URI.
type FileStore interface {
	// Write stores the file under the given object name and returns the URI
	// to persist with the statement.
	Write(ctx context.Context, objectName string, data []byte) (string, error)

	// Read downloads the file bytes for a URI previously returned by Write.
	Read(ctx context.Context, uri string) ([]byte, error)
}

// Checksum returns the sha256 hex digest of the raw file bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
