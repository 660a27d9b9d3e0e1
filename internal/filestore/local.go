package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores files under a directory on disk. URIs take the form
// file://<dir>/<objectName>.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Write(ctx context.Context, objectName string, data []byte) (string, error) {
	full := filepath.Join(l.dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write file %q: %w", full, err)
	}
	return "file://" + filepath.ToSlash(full), nil
}

func (l *Local) Read(ctx context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", path, err)
	}
	return data, nil
}
