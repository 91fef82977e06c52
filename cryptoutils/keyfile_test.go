package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenSeed(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)

	sealed, err := SealSeed(signer.Seed(), []byte("correct horse"))
	require.NoError(t, err)

	seed, err := OpenSeed(sealed, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, signer.Seed(), seed)

	_, err = OpenSeed(sealed, []byte("wrong passphrase"))
	assert.Error(t, err)
}

func TestOpenSeed_MalformedFile(t *testing.T) {
	_, err := OpenSeed([]byte("not json"), []byte("pass"))
	assert.Error(t, err)

	_, err = OpenSeed([]byte(`{"kdf":"scrypt"}`), []byte("pass"))
	assert.Error(t, err, "unknown KDF must be rejected")
}

func TestSealSeed_FreshSaltPerCall(t *testing.T) {
	seed := make([]byte, 32)

	a, err := SealSeed(seed, []byte("pass"))
	require.NoError(t, err)
	b, err := SealSeed(seed, []byte("pass"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
