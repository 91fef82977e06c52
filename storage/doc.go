// Package storage provides key-value store implementations for the trust
// engine's storage collaborator. Each backend satisfies interfaces.KVStore:
//
//   - In-memory storage for tests and development
//   - File system storage for single-node deployments
//   - S3-compatible storage for cloud deployments
//   - Vault KV v2 storage for secret-grade custody
//   - IPFS MFS storage for decentralized deployments
//
// # Storage URI Format
//
// Backends are selected through a URI, resolved by StoreFromURI:
//
//	memory://
//	file:///var/lib/trustd/state/
//	s3://bucket-name/prefix/?region=us-west-2
//	vault://vault.example.com:8200/secret/trustd?token=...
//	ipfs://ipfs.example.com:5001/trustd
//
// # Key Encoding
//
// Backends with path-shaped key spaces (file, ipfs) encode keys with
// unpadded base64url so that key material like "trust:acme:state" maps to a
// single safe path segment, and decode on ListKeys.
package storage
