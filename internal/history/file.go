package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// lockPollInterval is how often a blocked writer retries the lock.
const lockPollInterval = 20 * time.Millisecond

// FileMedium stores the artifact in a local file, typically a checkout of
// the gh-pages branch. The revision is the SHA-256 of the file content.
//
// Store holds an advisory lock on a sidecar ".lock" file while it compares
// revisions and swaps in the new content with an atomic rename, so
// concurrent writers on the same host never interleave.
type FileMedium struct {
	path string
}

// NewFileMedium returns a medium for the file at path. The file need not
// exist yet.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path}
}

// Path returns the artifact path.
func (m *FileMedium) Path() string {
	return m.path
}

func (m *FileMedium) Load(ctx context.Context) ([]byte, Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return m.read()
}

func (m *FileMedium) Store(ctx context.Context, content []byte, expected Revision) (Revision, error) {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	unlock, err := acquireLock(ctx, m.path+".lock")
	if err != nil {
		return "", err
	}
	defer unlock()

	_, current, err := m.read()
	if err != nil {
		return "", err
	}
	if current != expected {
		return "", ErrRevisionConflict
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := m.path + ".tmp-" + strconv.Itoa(os.Getpid())
	if err := writeSynced(tmpPath, content); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to replace %s: %w", m.path, err)
	}
	return contentRevision(content), nil
}

func (m *FileMedium) String() string { return "file " + m.path }

func (m *FileMedium) Close() error { return nil }

func (m *FileMedium) read() ([]byte, Revision, error) {
	// #nosec G304 - path comes from configuration
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", nil
	}
	return data, contentRevision(data), nil
}

func contentRevision(content []byte) Revision {
	sum := sha256.Sum256(content)
	return Revision("sha256:" + hex.EncodeToString(sum[:]))
}

func writeSynced(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}
