package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// FileStore implements a KVStore using the local file system. Each key maps
// to one file under the base directory; the key is base64url-encoded so
// arbitrary key material (including ':' separators) forms a safe file name.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates a file-backed store rooted at baseDir, creating the
// directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// GetItem retrieves the value for a key. Returns ErrKeyNotFound if the
// backing file does not exist.
func (s *FileStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// SetItem stores a value under a key. The write goes through a temporary file
// and rename so a crash mid-write never leaves a truncated state record.
func (s *FileStore) SetItem(ctx context.Context, key string, value []byte) error {
	target := s.filePath(key)

	tmp, err := os.CreateTemp(s.baseDir, ".write-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.log.Debug("Stored value in file",
		slog.String("key", key),
		slog.Int("size", len(value)))

	return nil
}

// RemoveItem deletes a key. Removing an absent key is not an error.
func (s *FileStore) RemoveItem(ctx context.Context, key string) error {
	if err := os.Remove(s.filePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// ListKeys returns all stored keys, decoding the file names back to key
// material. Files that do not decode (foreign files in the directory) are
// skipped.
func (s *FileStore) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list base directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(entry.Name())
		if err != nil {
			continue
		}
		keys = append(keys, string(decoded))
	}
	return keys, nil
}

func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.baseDir, base64.RawURLEncoding.EncodeToString([]byte(key)))
}
