// Command trustctl is the operator tool for the trust rotation service.
//
// It manages signer key material (generation, sealing, Shamir splitting of
// emergency seeds), produces detached manifest and migration signatures, and
// drives the server's operation workflow: creating operations, submitting
// signatures, applying, and inspecting namespace state.
//
// Signing keys live in sealed key files: the Ed25519 seed is encrypted with
// a passphrase taken from --passphrase or the TRUSTCTL_PASSPHRASE
// environment variable. Signatures are produced locally; the private key
// never reaches the server.
package main
