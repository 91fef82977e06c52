package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// VaultStore implements a KVStore using HashiCorp Vault's KV v2 secrets
// engine. Trust state is secret-grade data, so deployments that already run
// Vault can keep it under the same access policies and audit devices.
type VaultStore struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault-backed store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token; empty falls back to the VAULT_TOKEN environment
//   - mountPath: KV v2 mount (e.g. "secret")
//   - dataPath: path within the mount (e.g. "trustd")
func NewVaultStore(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultStore{
		client:    client,
		mountPath: strings.Trim(mountPath, "/"),
		dataPath:  strings.Trim(dataPath, "/"),
		log:       log,
	}, nil
}

// GetItem retrieves the value for a key from the KV v2 engine.
func (s *VaultStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath("data", key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, interfaces.ErrKeyNotFound
	}

	// KV v2 wraps the payload in a "data" envelope.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	value, ok := data["value"].(string)
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}

	s.log.Debug("Fetched value from Vault", slog.String("key", key))
	return []byte(value), nil
}

// SetItem stores a value under a key.
func (s *VaultStore) SetItem(ctx context.Context, key string, value []byte) error {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"value": string(value),
		},
	}

	if _, err := s.client.Logical().WriteWithContext(ctx, s.secretPath("data", key), payload); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	s.log.Debug("Stored value in Vault", slog.String("key", key))
	return nil
}

// RemoveItem deletes a key, including all KV v2 metadata and versions.
func (s *VaultStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.client.Logical().DeleteWithContext(ctx, s.secretPath("metadata", key)); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// ListKeys returns all keys under the store's data path.
func (s *VaultStore) ListKeys(ctx context.Context) ([]string, error) {
	secret, err := s.client.Logical().ListWithContext(ctx, fmt.Sprintf("%s/metadata/%s", s.mountPath, s.dataPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return []string{}, nil
	}

	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return []string{}, nil
	}

	keys := make([]string, 0, len(raw))
	for _, item := range raw {
		if key, ok := item.(string); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *VaultStore) secretPath(op, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.mountPath, op, s.dataPath, key)
}
