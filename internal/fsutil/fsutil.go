// Package fsutil holds the filesystem helpers shared by the conversion
// stages: collision-resistant working directories and best-effort cleanup.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxMkdirAttempts bounds retries when a generated directory name collides.
const maxMkdirAttempts = 3

// CleanupError reports a temporary or staging directory that could not be
// removed. It is diagnostic only and never the result of a conversion.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to clean up %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// RemoveAll recursively removes path. A failure is returned as a
// *CleanupError for the caller to log.
func RemoveAll(path string) error {
	if path == "" {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return &CleanupError{Path: path, Err: err}
	}
	return nil
}

// MkdirUnique creates a new directory named "<prefix><uuid>" under parent
// (os.TempDir() when parent is empty). The directory is created with
// os.Mkdir, so an existing path is never reused.
func MkdirUnique(parent, prefix string) (string, error) {
	if parent == "" {
		parent = os.TempDir()
	}

	var lastErr error
	for range maxMkdirAttempts {
		dir := filepath.Join(parent, prefix+uuid.NewString())
		err := os.Mkdir(dir, 0o700)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("failed to create unique directory under %s: %w", parent, lastErr)
}

// CopyFile copies src to dst byte-for-byte. dst must not exist.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// DirExists returns true if path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
