// Package interfaces defines the core types and collaborator contracts for the
// trust-root rotation system. It provides the contract between components
// without implementation details: the trust data model (manifests, roots,
// operations, state), the key-value storage contract, the audit sink, and the
// optional co-signer transport and manifest anchor.
//
// # Trust Data Model
//
// A TrustManifest describes the complete root set and signature threshold of a
// namespace at one version. Manifests form a hash chain: every manifest after
// the first carries PrecedingHash, the SHA-256 of its predecessor's canonical
// encoding. A TrustOperation proposes a replacement manifest and accumulates
// TrustIssuer signatures until the threshold of the current manifest is met.
//
// # Wire Format
//
// All key, signature, and hash material is base64url without padding.
// Manifests, operations, and state persist as JSON records; canonicalization
// is applied transiently at sign/verify/hash time, never as the storage
// encoding.
package interfaces
