package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalArchiver copies artifacts into a directory on the same host,
// typically a second mount kept for backups.
type LocalArchiver struct {
	dir string
}

// NewLocalArchiver creates the archive directory if needed.
func NewLocalArchiver(dir string) (*LocalArchiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return &LocalArchiver{dir: dir}, nil
}

// Archive copies srcPath into the archive directory under name.
func (a *LocalArchiver) Archive(_ context.Context, srcPath, name string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(a.dir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive copy: %w", err)
	}

	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive copy: %w", err)
	}
	return destPath, nil
}
