// Package trust implements the manifest-rotation protocol: validation of
// proposed manifests against the chain and threshold rules, the operation
// workflow (proposal, signature accumulation, threshold-triggered apply),
// root lifecycle queries, and one-shot migration from a legacy flat admin-key
// list.
//
// # Engine
//
// An Engine is constructed once per namespace with its storage, audit,
// transport, and anchor collaborators, and serializes every
// load-mutate-persist cycle behind an internal mutex. The host is expected to
// maintain single-writer-per-namespace discipline at the storage boundary;
// the engine does not implement distributed locking.
//
// # Error Handling
//
// Ordering mistakes (ErrNotInitialized, ErrAlreadyInitialized) and storage
// failures on write paths surface as errors. Validation failures never do:
// they are frequent, expected outcomes of a multi-party ceremony and are
// reported as a TrustValidation record or a false return. Read paths
// (GetState, GetActiveRoots, IsTrustedKey) degrade to nil/empty/false on any
// storage or decode failure.
package trust
