// Package cryptoutils provides the cryptographic primitives of the trust-root
// rotation system: deterministic canonical encoding for hashing and signing,
// Ed25519 signature verification, SHA-256 chain hashing, and passphrase-sealed
// key files for operator key custody.
//
// # Canonical Encoding
//
// Canonicalize produces a deterministic JSON encoding with object keys sorted
// lexicographically at every nesting level. Independent signers must compute
// byte-identical digests from the same logical manifest regardless of field
// order, so all signing and chain hashing goes through Canonicalize.
//
// # Encoding Conventions
//
// Keys, signatures, and hashes travel as base64url without padding. Ed25519
// public keys are the raw 32-byte form; signatures the raw 64-byte form.
package cryptoutils
