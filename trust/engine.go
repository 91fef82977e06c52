package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// Config carries the collaborators an Engine is bound to. One Engine serves
// exactly one namespace; a multi-tenant process constructs one per namespace
// instead of sharing module-level state.
type Config struct {
	// Namespace this engine manages.
	Namespace string

	// Store holds the namespace's TrustState record.
	Store interfaces.KVStore

	// Audit receives trust lifecycle events. Optional.
	Audit interfaces.AuditSink

	// Transport notifies co-signers of newly created operations. Optional.
	Transport interfaces.OperationTransport

	// Anchor publishes applied manifest hashes to a transparency medium.
	// Optional.
	Anchor interfaces.ManifestAnchor

	// Log is the structured logger for operational insight.
	Log *slog.Logger
}

// Engine runs the manifest-rotation workflow for a single namespace. All
// mutating calls serialize a load-mutate-persist cycle behind an internal
// mutex; concurrent callers within one process cannot lose updates to the
// same operation.
type Engine struct {
	namespace string
	store     interfaces.KVStore
	audit     interfaces.AuditSink
	transport interfaces.OperationTransport
	anchor    interfaces.ManifestAnchor
	log       *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// InitConfig describes the genesis manifest of a namespace.
type InitConfig struct {
	Roots     []interfaces.TrustRoot
	Threshold int
}

// NewEngine creates an engine bound to one namespace and its collaborators.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Namespace == "" {
		return nil, errors.New("namespace must not be empty")
	}
	if cfg.Store == nil {
		return nil, errors.New("storage collaborator must not be nil")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		namespace: cfg.Namespace,
		store:     cfg.Store,
		audit:     cfg.Audit,
		transport: cfg.Transport,
		anchor:    cfg.Anchor,
		log:       log.With(slog.String("namespace", cfg.Namespace)),
		now:       time.Now,
	}, nil
}

// Namespace returns the namespace this engine manages.
func (e *Engine) Namespace() string {
	return e.namespace
}

// Initialize persists the genesis trust state for the namespace. Fails with
// ErrAlreadyInitialized if a state record already exists.
func (e *Engine) Initialize(ctx context.Context, cfg InitConfig) (*interfaces.TrustState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exists, err := e.stateExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyInitialized
	}

	now := e.now().UTC()
	manifest := interfaces.TrustManifest{
		Version:   1,
		Namespace: e.namespace,
		Roots:     cfg.Roots,
		Threshold: cfg.Threshold,
		CreatedAt: now,
	}
	if err := checkManifestStructure(manifest); err != nil {
		return nil, err
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

	e.emitAudit(ctx, interfaces.EventTrustInitialized, map[string]any{
		"namespace":       e.namespace,
		"manifestVersion": manifest.Version,
		"rootCount":       len(manifest.Roots),
		"threshold":       manifest.Threshold,
	})

	e.log.Info("Trust state initialized",
		slog.Int("roots", len(manifest.Roots)),
		slog.Int("threshold", manifest.Threshold))

	return state, nil
}

// GetState returns the namespace's trust state, or nil if the namespace is
// uninitialized, the storage collaborator fails, or the persisted record is
// malformed. Read paths fail closed instead of crashing the caller.
func (e *Engine) GetState(ctx context.Context) *interfaces.TrustState {
	state, err := e.loadState(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotInitialized) {
			e.log.Debug("Degrading state read to nil", "err", err)
		}
		return nil
	}
	return state
}

// CreateOperation appends a pending operation proposing target as the next
// manifest. The operation starts with no issuer signatures. Requires an
// initialized namespace. Co-signers are notified through the transport
// collaborator when one is configured; notification failure only delays
// discovery and never fails the call.
func (e *Engine) CreateOperation(ctx context.Context, opType interfaces.OperationType, target interfaces.TrustManifest, reason string) (*interfaces.TrustOperation, error) {
	if err := opType.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	op := interfaces.TrustOperation{
		ID:             uuid.New().String(),
		Type:           opType,
		Namespace:      e.namespace,
		TargetManifest: target,
		Issuers:        []interfaces.TrustIssuer{},
		CreatedAt:      now,
		Reason:         reason,
	}

	state.PendingOperations = append(state.PendingOperations, op)
	state.LastUpdated = now
	if err := e.persistState(ctx, state); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, interfaces.EventOperationCreated, map[string]any{
		"operationId":   op.ID,
		"operationType": string(op.Type),
		"namespace":     e.namespace,
		"targetVersion": target.Version,
		"reason":        reason,
	})

	if e.transport != nil {
		if err := e.transport.PublishOperation(ctx, op); err != nil {
			e.log.Warn("Failed to publish operation to co-signers",
				slog.String("operationId", op.ID), "err", err)
		}
	}

	e.log.Info("Trust operation created",
		slog.String("operationId", op.ID),
		slog.String("type", string(op.Type)))

	return &op, nil
}

// SignOperation records an issuer signature on a pending operation. The
// signature is verified over the canonical encoding of the operation's target
// manifest against the referenced root of the current manifest; any mismatch
// returns false with no state change. Re-signing by the same root is a no-op,
// not an error. When the accumulated distinct signatures meet the current
// manifest's threshold the operation is applied immediately.
func (e *Engine) SignOperation(ctx context.Context, id string, issuer interfaces.TrustIssuer) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.loadState(ctx)
	if err != nil {
		return false, err
	}

	op, ok := state.PendingOperation(id)
	if !ok {
		return false, ErrOperationNotFound
	}

	root, ok := state.CurrentManifest.RootByID(issuer.RootID)
	if !ok {
		e.log.Info("Rejected signature from unknown root", slog.String("rootId", issuer.RootID))
		return false, nil
	}
	if root.PublicKey != issuer.PublicKey {
		e.log.Info("Rejected signature with spoofed issuer key", slog.String("rootId", issuer.RootID))
		return false, nil
	}

	canonical, err := cryptoutils.Canonicalize(op.TargetManifest)
	if err != nil {
		return false, fmt.Errorf("failed to canonicalize target manifest: %w", err)
	}
	if !cryptoutils.VerifySignature(canonical, issuer.Signature, issuer.PublicKey) {
		e.log.Info("Rejected invalid signature", slog.String("rootId", issuer.RootID))
		return false, nil
	}

	if op.HasIssuer(issuer.RootID) {
		return true, nil
	}

	now := e.now().UTC()
	if issuer.SignedAt.IsZero() {
		issuer.SignedAt = now
	}
	op.Issuers = append(op.Issuers, issuer)
	state.LastUpdated = now
	if err := e.persistState(ctx, state); err != nil {
		return false, err
	}

	count := e.countCurrentSigners(state, op)
	e.emitAudit(ctx, interfaces.EventOperationSigned, map[string]any{
		"operationId":    op.ID,
		"rootId":         issuer.RootID,
		"signatureCount": count,
		"threshold":      state.CurrentManifest.Threshold,
	})

	if count >= state.CurrentManifest.Threshold {
		// Threshold reached: apply as part of the same critical section. An
		// apply rejection (e.g. a root revoked since signing) leaves the
		// operation pending; the signature itself was still accepted.
		if _, err := e.applyLocked(ctx, state, op.ID); err != nil {
			return false, err
		}
	}

	return true, nil
}

// ApplyOperation re-validates a pending operation and, when valid, promotes
// its target manifest to the namespace's current manifest. Returns false when
// validation fails; only storage failures surface as errors. The incremental
// signature count collected during signing is never trusted blindly: a root
// may have been revoked between signing and applying.
func (e *Engine) ApplyOperation(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.loadState(ctx)
	if err != nil {
		return false, err
	}
	return e.applyLocked(ctx, state, id)
}

// applyLocked applies a pending operation within the caller-held critical
// section. On success the operation moves from pendingOperations to
// operationHistory and the target manifest replaces the current manifest
// wholesale; on validation failure the operation stays pending and the
// rejection reasons are audited.
func (e *Engine) applyLocked(ctx context.Context, state *interfaces.TrustState, id string) (bool, error) {
	op, ok := state.PendingOperation(id)
	if !ok {
		return false, ErrOperationNotFound
	}

	validation := Validate(op.TargetManifest, op.Issuers, &state.CurrentManifest)
	if !validation.Valid {
		e.emitAudit(ctx, interfaces.EventOperationRejected, map[string]any{
			"operationId": op.ID,
			"errors":      validation.Errors,
		})
		e.log.Info("Trust operation rejected",
			slog.String("operationId", op.ID),
			slog.Any("errors", validation.Errors))
		return false, nil
	}

	applied := *op
	now := e.now().UTC()

	remaining := make([]interfaces.TrustOperation, 0, len(state.PendingOperations)-1)
	for _, pending := range state.PendingOperations {
		if pending.ID != id {
			remaining = append(remaining, pending)
		}
	}
	state.PendingOperations = remaining
	state.OperationHistory = append(state.OperationHistory, applied)
	state.CurrentManifest = applied.TargetManifest
	state.LastUpdated = now

	if err := e.persistState(ctx, state); err != nil {
		return false, err
	}

	e.emitAudit(ctx, interfaces.EventOperationApplied, map[string]any{
		"operationId":     applied.ID,
		"operationType":   string(applied.Type),
		"manifestVersion": applied.TargetManifest.Version,
		"rootCount":       len(applied.TargetManifest.Roots),
		"threshold":       applied.TargetManifest.Threshold,
	})

	if e.anchor != nil {
		canonical, err := cryptoutils.Canonicalize(applied.TargetManifest)
		if err == nil {
			err = e.anchor.AnchorManifest(ctx, e.namespace, applied.TargetManifest.Version, cryptoutils.HashB64u(canonical))
		}
		if err != nil {
			e.log.Warn("Failed to anchor applied manifest",
				slog.Uint64("version", applied.TargetManifest.Version), "err", err)
		}
	}

	e.log.Info("Trust operation applied",
		slog.String("operationId", applied.ID),
		slog.Uint64("newVersion", applied.TargetManifest.Version))

	return true, nil
}

// GetActiveRoots returns the current manifest's roots that have not expired.
// Returns an empty slice when the namespace is uninitialized or the storage
// collaborator fails.
func (e *Engine) GetActiveRoots(ctx context.Context) []interfaces.TrustRoot {
	state, err := e.loadState(ctx)
	if err != nil {
		return []interfaces.TrustRoot{}
	}
	return state.CurrentManifest.ActiveRoots(e.now())
}

// IsTrustedKey reports whether a public key belongs to an active root of the
// current manifest. Fails closed: false on any underlying failure.
func (e *Engine) IsTrustedKey(ctx context.Context, publicKeyB64u string) bool {
	for _, root := range e.GetActiveRoots(ctx) {
		if root.PublicKey == publicKeyB64u {
			return true
		}
	}
	return false
}

// countCurrentSigners counts distinct issuers whose root id still resolves in
// the current manifest with a matching public key.
func (e *Engine) countCurrentSigners(state *interfaces.TrustState, op *interfaces.TrustOperation) int {
	counted := make(map[string]struct{})
	for _, issuer := range op.Issuers {
		root, ok := state.CurrentManifest.RootByID(issuer.RootID)
		if ok && root.PublicKey == issuer.PublicKey {
			counted[issuer.RootID] = struct{}{}
		}
	}
	return len(counted)
}

// emitAudit sends an event to the audit sink. State durability takes priority
// over best-effort logging: sink failures are logged and never propagated.
func (e *Engine) emitAudit(ctx context.Context, event string, payload map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Emit(ctx, event, payload); err != nil {
		e.log.Error("Failed to emit audit event", slog.String("event", event), "err", err)
	}
}

// checkManifestStructure enforces the structural invariants of a manifest
// created locally (initialization and migration).
func checkManifestStructure(manifest interfaces.TrustManifest) error {
	if len(manifest.Roots) == 0 {
		return errors.New("manifest must contain at least one trust root")
	}
	if manifest.Threshold < 1 || manifest.Threshold > len(manifest.Roots) {
		return fmt.Errorf("invalid threshold %d for %d roots", manifest.Threshold, len(manifest.Roots))
	}
	seen := make(map[string]struct{}, len(manifest.Roots))
	for _, root := range manifest.Roots {
		if err := root.Role.Validate(); err != nil {
			return err
		}
		if _, dup := seen[root.ID]; dup {
			return fmt.Errorf("duplicate root id %q", root.ID)
		}
		seen[root.ID] = struct{}{}
	}
	return nil
}
