package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// StoreFromURI creates a KVStore from a storage location URI. Supported
// schemes: memory, file, s3, vault, ipfs (see the package documentation for
// the URI formats).
func StoreFromURI(uri string, log *slog.Logger) (interfaces.KVStore, error) {
	loc, err := interfaces.NewStorageLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "memory":
		return NewMemoryStore(), nil

	case "file":
		return NewFileStore(loc.Path, log)

	case "s3":
		region := loc.GetParam("region")
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(
			loc.Host,
			strings.Trim(loc.Path, "/"),
			region,
			loc.GetParam("endpoint"),
			loc.GetParam("access_key"),
			loc.GetParam("secret_key"),
			log,
		)

	case "vault":
		address := "https://" + loc.Host
		if loc.GetParam("insecure") == "true" {
			address = "http://" + loc.Host
		}
		parts := strings.SplitN(strings.Trim(loc.Path, "/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: vault URI path must be /<mount>/<data-path>", interfaces.ErrInvalidStorageURI)
		}
		return NewVaultStore(address, loc.GetParam("token"), parts[0], parts[1], log)

	case "ipfs":
		baseDir := loc.Path
		if strings.Trim(baseDir, "/") == "" {
			baseDir = "/trustd"
		}
		return NewIPFSStore(loc.Host, baseDir, log)

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidStorageURI, loc.Scheme)
	}
}
