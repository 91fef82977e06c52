package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// MigrationManifest synthesizes the version-1 manifest adopted by a legacy
// migration: one PRIMARY root per admin key, ids derived from list position,
// threshold ceil(N/2).
//
// The manifest must be byte-reproducible by every admin signing it out of
// band, so its timestamps are pinned to the Unix epoch instead of the local
// clock. The actual adoption time is recorded on the migration record and the
// persisted state, not inside the signed manifest.
func MigrationManifest(namespace string, adminKeys []string) interfaces.TrustManifest {
	epoch := time.Unix(0, 0).UTC()
	manifest := interfaces.TrustManifest{
		Version:   1,
		Namespace: namespace,
		Roots:     make([]interfaces.TrustRoot, 0, len(adminKeys)),
		Threshold: (len(adminKeys) + 1) / 2,
		CreatedAt: epoch,
	}
	for i, key := range adminKeys {
		manifest.Roots = append(manifest.Roots, interfaces.TrustRoot{
			ID:        fmt.Sprintf("admin-%d", i+1),
			PublicKey: key,
			Role:      interfaces.RolePrimary,
			CreatedAt: epoch,
		})
	}
	return manifest
}

// MigrateLegacy bootstraps a namespace from a flat list of legacy admin keys.
// It synthesizes a version-1 manifest with one PRIMARY root per admin key
// (ids derived from list position) and threshold ceil(N/2), then counts the
// provided signatures over the manifest's canonical encoding. A signature
// counts only when the signer's key is itself one of adminKeys: the bootstrap
// is closed-world, nobody outside the legacy admin set can vote it in.
//
// If the valid count meets the threshold the trust state is initialized
// atomically with this manifest (ErrAlreadyInitialized if a state exists) and
// CompletedAt is set on the returned record. Otherwise nothing is persisted
// and CompletedAt is nil; the whole call must be retried with more
// signatures. Migration is deliberately not a resumable pending object.
func (e *Engine) MigrateLegacy(ctx context.Context, adminKeys []string, signatures []interfaces.MigrationSignature) (*interfaces.TrustMigration, error) {
	if len(adminKeys) == 0 {
		return nil, errors.New("no legacy admin keys to migrate")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	manifest := MigrationManifest(e.namespace, adminKeys)
	if err := checkManifestStructure(manifest); err != nil {
		return nil, err
	}

	canonical, err := cryptoutils.Canonicalize(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize migration manifest: %w", err)
	}

	adminSet := make(map[string]struct{}, len(adminKeys))
	for _, key := range adminKeys {
		adminSet[key] = struct{}{}
	}

	validSigners := make(map[string]struct{})
	for _, sig := range signatures {
		if _, ok := adminSet[sig.PublicKey]; !ok {
			e.log.Info("Ignoring migration signature from non-admin key")
			continue
		}
		if !cryptoutils.VerifySignature(canonical, sig.Signature, sig.PublicKey) {
			e.log.Info("Ignoring invalid migration signature")
			continue
		}
		validSigners[sig.PublicKey] = struct{}{}
	}

	migration := &interfaces.TrustMigration{
		FromAdmins:          adminKeys,
		ToManifest:          manifest,
		MigrationSignatures: signatures,
	}

	if len(validSigners) < manifest.Threshold {
		e.log.Info("Legacy migration short of majority",
			slog.Int("validSignatures", len(validSigners)),
			slog.Int("threshold", manifest.Threshold))
		return migration, nil
	}

	exists, err := e.stateExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyInitialized
	}

	state := &interfaces.TrustState{
		CurrentManifest:   manifest,
		PendingOperations: []interfaces.TrustOperation{},
		OperationHistory:  []interfaces.TrustOperation{},
		LastUpdated:       now,
	}
	if err := e.persistState(ctx, state); err != nil {
		return nil, err
	}

	completed := e.now().UTC()
	migration.CompletedAt = &completed

	e.emitAudit(ctx, interfaces.EventLegacyMigrated, map[string]any{
		"namespace":       e.namespace,
		"adminCount":      len(adminKeys),
		"validSignatures": len(validSigners),
		"threshold":       manifest.Threshold,
		"manifestVersion": manifest.Version,
	})

	e.log.Info("Legacy admin keys migrated to threshold manifest",
		slog.Int("admins", len(adminKeys)),
		slog.Int("threshold", manifest.Threshold))

	return migration, nil
}
