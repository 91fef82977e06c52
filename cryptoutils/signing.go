package cryptoutils

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// VerifySignature verifies an Ed25519 signature over data. The signature and
// public key are base64url without padding; the key is the raw 32-byte form.
// Returns false on any decoding or cryptographic failure. Verification
// failure is data, not an exceptional condition, so this never errors.
func VerifySignature(data []byte, signatureB64u, publicKeyB64u string) bool {
	pub, err := base64.RawURLEncoding.DecodeString(publicKeyB64u)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	sig, err := base64.RawURLEncoding.DecodeString(signatureB64u)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), data, sig)
}

// HashB64u returns the SHA-256 digest of data, base64url-encoded without
// padding. Used for manifest chain linkage.
func HashB64u(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Signer holds an Ed25519 private key and produces wire-format signatures and
// public keys. It backs the operator CLI and tests; the engine itself only
// ever verifies.
type Signer struct {
	priv ed25519.PrivateKey
}

// GenerateSigner creates a Signer with a fresh Ed25519 keypair.
func GenerateSigner() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Signer{priv: priv}, nil
}

// NewSignerFromSeed reconstructs a Signer from a 32-byte Ed25519 seed.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("ed25519 seed must be 32 bytes")
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed for key custody.
func (s *Signer) Seed() []byte {
	return s.priv.Seed()
}

// PublicKeyB64u returns the raw public key, base64url without padding.
func (s *Signer) PublicKeyB64u() string {
	pub := s.priv.Public().(ed25519.PublicKey)
	return base64.RawURLEncoding.EncodeToString(pub)
}

// Sign signs data and returns the signature, base64url without padding.
func (s *Signer) Sign(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(ed25519.Sign(s.priv, data))
}
