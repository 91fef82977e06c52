package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for sealing key files. Fixed so sealed files remain
// openable across releases.
const (
	sealTime    = 1
	sealMemory  = 64 * 1024
	sealThreads = 4
	sealKeyLen  = 32
)

// SealedKey is a passphrase-encrypted Ed25519 seed as stored on disk by the
// operator CLI. The seed is encrypted with AES-GCM under an Argon2id-derived
// key.
type SealedKey struct {
	KDF        string `json:"kdf"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealSeed encrypts an Ed25519 seed under a passphrase. A fresh salt and nonce
// are generated for every call.
func SealSeed(seed, passphrase []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey(passphrase, salt, sealTime, sealMemory, sealThreads, sealKeyLen)

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := SealedKey{
		KDF:        "argon2id",
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesGCM.Seal(nil, nonce, seed, nil),
	}

	return json.Marshal(sealed)
}

// OpenSeed decrypts a sealed key file with the passphrase.
func OpenSeed(data, passphrase []byte) ([]byte, error) {
	var sealed SealedKey
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("malformed sealed key file: %w", err)
	}

	if sealed.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported KDF %q", sealed.KDF)
	}

	key := argon2.IDKey(passphrase, sealed.Salt, sealTime, sealMemory, sealThreads, sealKeyLen)

	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	if len(sealed.Nonce) != aesGCM.NonceSize() {
		return nil, errors.New("malformed sealed key file: bad nonce length")
	}

	seed, err := aesGCM.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, errors.New("failed to decrypt key file: wrong passphrase or corrupted data")
	}

	return seed, nil
}
