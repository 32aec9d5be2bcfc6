// Package safefile writes files with a backup and read-back verification.
//
// A write first copies the current file (if any) to <path>.bak, writes the
// new content, then reads it back. When the read-back differs the backup is
// left in place and a verification fault is returned. On success the
// backup is removed.
package safefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/corey/cpbench/internal/domain/fault"
)

// BackupSuffix is appended to the target path for the pre-write copy.
const BackupSuffix = ".bak"

// Writer performs verified writes.
type Writer struct {
	readBack func(path string) ([]byte, error)
	perm     os.FileMode
}

// Option configures a Writer.
type Option func(*Writer)

// WithReadBack replaces the function used to read the file after writing.
func WithReadBack(fn func(path string) ([]byte, error)) Option {
	return func(w *Writer) { w.readBack = fn }
}

// WithPerm sets the mode used for newly created files.
func WithPerm(perm os.FileMode) Option {
	return func(w *Writer) { w.perm = perm }
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{readBack: os.ReadFile, perm: 0644}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write replaces path with content. Parent directories are created.
func (w *Writer) Write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	backup := path + BackupSuffix
	hadOriginal, err := copyFile(path, backup)
	if err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}

	perm := w.perm
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	got, err := w.readBack(path)
	if err != nil {
		return fault.Wrap(fault.Verification, err, "read back %s", path)
	}
	if !bytes.Equal(got, content) {
		return fault.New(fault.Verification, "content of %s does not match what was written", path)
	}

	if hadOriginal {
		if err := os.Remove(backup); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove backup: %w", err)
		}
	}
	return nil
}

// Write uses a default Writer.
func Write(path string, content []byte) error {
	return New().Write(path, content)
}

// copyFile copies src to dst. It reports false without error when src does
// not exist.
func copyFile(src, dst string) (bool, error) {
	data, err := os.ReadFile(src)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}
