package interfaces

import "context"

// OperationTransport notifies off-process co-signers of pending operations.
// The transport is optional and fire-and-forget: its absence or failure must
// not change correctness, only how quickly co-signers discover work.
type OperationTransport interface {
	PublishOperation(ctx context.Context, op TrustOperation) error
}

// ManifestAnchor publishes a commitment to an applied manifest on an external
// transparency medium, binding the local hash chain to a public timeline.
// Anchoring is best-effort, like audit emission.
type ManifestAnchor interface {
	AnchorManifest(ctx context.Context, namespace string, version uint64, manifestHash string) error
}
