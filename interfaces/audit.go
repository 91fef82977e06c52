package interfaces

import "context"

// Audit event names emitted by the trust engine. Payloads carry enough
// identifiers (operation id, signer root id, counts, manifest version) to
// reconstruct a timeline from the audit log alone.
const (
	EventTrustInitialized  = "TRUST_INITIALIZED"
	EventOperationCreated  = "TRUST_OPERATION_CREATED"
	EventOperationSigned   = "TRUST_OPERATION_SIGNED"
	EventOperationApplied  = "TRUST_OPERATION_APPLIED"
	EventOperationRejected = "TRUST_OPERATION_REJECTED"
	EventLegacyMigrated    = "TRUST_LEGACY_MIGRATED"
)

// AuditSink receives trust lifecycle events. Emission is best-effort: a sink
// failure must never roll back an already-committed trust-state mutation, so
// the engine logs Emit errors and moves on.
type AuditSink interface {
	Emit(ctx context.Context, event string, payload map[string]any) error
}
