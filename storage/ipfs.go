package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// IPFSStore implements a KVStore on the IPFS Mutable File System of a single
// IPFS node. MFS gives the mutable key space the engine needs while the
// node's regular pinning and replication machinery applies underneath. Keys
// are base64url-encoded into one MFS path segment under the base directory.
type IPFSStore struct {
	shell   *shell.Shell
	baseDir string
	log     *slog.Logger
}

// NewIPFSStore creates an IPFS MFS-backed store talking to the node's HTTP
// API (e.g. "ipfs.example.com:5001") and rooted at baseDir (e.g. "/trustd").
func NewIPFSStore(apiAddr, baseDir string, log *slog.Logger) (*IPFSStore, error) {
	sh := shell.NewShell(apiAddr)

	baseDir = "/" + strings.Trim(baseDir, "/")
	if err := sh.FilesMkdir(context.Background(), baseDir, shell.FilesMkdir.Parents(true)); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	return &IPFSStore{shell: sh, baseDir: baseDir, log: log}, nil
}

// GetItem retrieves the value for a key from MFS.
func (s *IPFSStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.shell.FilesRead(ctx, s.mfsPath(key))
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "not exist") {
			return nil, interfaces.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read MFS file: %w", err)
	}

	s.log.Debug("Fetched value from IPFS MFS",
		slog.String("key", key),
		slog.Int("size", len(data)))

	return data, nil
}

// SetItem stores a value under a key, truncating any previous content.
func (s *IPFSStore) SetItem(ctx context.Context, key string, value []byte) error {
	err := s.shell.FilesWrite(ctx, s.mfsPath(key), bytes.NewReader(value),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	s.log.Debug("Stored value in IPFS MFS",
		slog.String("key", key),
		slog.Int("size", len(value)))

	return nil
}

// RemoveItem deletes a key. Removing an absent key is not an error.
func (s *IPFSStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.shell.FilesRm(ctx, s.mfsPath(key), true); err != nil {
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// ListKeys returns all stored keys, decoding MFS entry names back to key
// material. Entries that do not decode are skipped.
func (s *IPFSStore) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := s.shell.FilesLs(ctx, s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		decoded, err := base64.RawURLEncoding.DecodeString(entry.Name)
		if err != nil {
			continue
		}
		keys = append(keys, string(decoded))
	}
	return keys, nil
}

func (s *IPFSStore) mfsPath(key string) string {
	return s.baseDir + "/" + base64.RawURLEncoding.EncodeToString([]byte(key))
}
