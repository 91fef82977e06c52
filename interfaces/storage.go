package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrKeyNotFound is returned when the requested key has no value in the
	// storage backend.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible, due to network issues, authentication failures, or outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidStorageURI is returned when a storage location URI is
	// malformed or names an unsupported scheme.
	ErrInvalidStorageURI = errors.New("invalid storage location URI")
)

// KVStore is the minimal key-value contract the trust engine requires from its
// storage collaborator. The engine owns exactly one key per namespace (see
// StateKey) and performs whole-record read-modify-write under the host's
// single-writer-per-namespace discipline.
type KVStore interface {
	// GetItem retrieves the value for a key. Returns ErrKeyNotFound if the
	// key has no value.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores a value under a key, replacing any previous value.
	SetItem(ctx context.Context, key string, value []byte) error

	// RemoveItem deletes a key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// ListKeys returns all keys owned by this store.
	ListKeys(ctx context.Context) ([]string, error)
}

// StateKey returns the storage key holding the serialized TrustState of a
// namespace.
func StateKey(namespace string) string {
	return fmt.Sprintf("trust:%s:state", namespace)
}

// StorageLocation is a parsed storage backend URI.
type StorageLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
}

// NewStorageLocation parses and validates a storage backend URI.
// Supported schemes: memory, file, s3, vault, ipfs.
func NewStorageLocation(uri string) (StorageLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("%w: %s", ErrInvalidStorageURI, err)
	}

	switch parsed.Scheme {
	case "memory", "file", "s3", "vault", "ipfs":
	default:
		return StorageLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidStorageURI, parsed.Scheme)
	}

	return StorageLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}, nil
}

// String returns the original URI string.
func (loc StorageLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}
