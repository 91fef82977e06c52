package trust

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
)

type testRoot struct {
	id     string
	signer *cryptoutils.Signer
	role   interfaces.RootRole
}

func newTestRoots(t *testing.T, count int) []testRoot {
	t.Helper()
	roots := make([]testRoot, count)
	for i := range roots {
		signer, err := cryptoutils.GenerateSigner()
		require.NoError(t, err)
		roots[i] = testRoot{
			id:     fmt.Sprintf("root-%d", i+1),
			signer: signer,
			role:   interfaces.RolePrimary,
		}
	}
	return roots
}

func manifestOf(roots []testRoot, version uint64, threshold int) interfaces.TrustManifest {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	manifest := interfaces.TrustManifest{
		Version:   version,
		Namespace: "acme",
		Threshold: threshold,
		CreatedAt: created,
	}
	for _, root := range roots {
		manifest.Roots = append(manifest.Roots, interfaces.TrustRoot{
			ID:        root.id,
			PublicKey: root.signer.PublicKeyB64u(),
			Role:      root.role,
			CreatedAt: created,
		})
	}
	return manifest
}

func chainTo(t *testing.T, previous interfaces.TrustManifest, next interfaces.TrustManifest) interfaces.TrustManifest {
	t.Helper()
	canonical, err := cryptoutils.Canonicalize(previous)
	require.NoError(t, err)
	next.PrecedingHash = cryptoutils.HashB64u(canonical)
	return next
}

func issuerFor(t *testing.T, root testRoot, target interfaces.TrustManifest) interfaces.TrustIssuer {
	t.Helper()
	canonical, err := cryptoutils.Canonicalize(target)
	require.NoError(t, err)
	return interfaces.TrustIssuer{
		RootID:    root.id,
		PublicKey: root.signer.PublicKeyB64u(),
		Signature: root.signer.Sign(canonical),
		SignedAt:  time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidate_StructuralChecks(t *testing.T) {
	result := Validate(interfaces.TrustManifest{Version: 1, Namespace: "acme", Threshold: 1}, nil, nil)
	assert.False(t, result.ManifestValid)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	roots := newTestRoots(t, 2)
	tooHigh := manifestOf(roots, 1, 3)
	result = Validate(tooHigh, nil, nil)
	assert.False(t, result.ManifestValid)

	zero := manifestOf(roots, 1, 0)
	result = Validate(zero, nil, nil)
	assert.False(t, result.ManifestValid)

	dup := manifestOf(roots, 1, 1)
	dup.Roots[1].ID = dup.Roots[0].ID
	result = Validate(dup, nil, nil)
	assert.False(t, result.ManifestValid)
}

func TestValidate_EmptyIssuersIsValidInput(t *testing.T) {
	roots := newTestRoots(t, 3)
	manifest := manifestOf(roots, 1, 2)

	result := Validate(manifest, nil, nil)
	assert.True(t, result.ManifestValid)
	assert.True(t, result.SignaturesValid)
	assert.False(t, result.ThresholdMet)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Insufficient signatures: 0/2")
}

func TestValidate_ChainIntegrity(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 2)
	next := chainTo(t, previous, manifestOf(roots, 2, 2))
	issuers := []interfaces.TrustIssuer{
		issuerFor(t, roots[0], next),
		issuerFor(t, roots[1], next),
	}

	result := Validate(next, issuers, &previous)
	assert.True(t, result.ChainValid)
	assert.True(t, result.Valid)

	// Mutating any field of the predecessor breaks the chain.
	tampered := previous
	tampered.Threshold = 1
	result = Validate(next, issuers, &tampered)
	assert.False(t, result.ChainValid)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Manifest chain integrity violation")
}

func TestValidate_VersionMustIncrease(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 2, 2)
	next := chainTo(t, previous, manifestOf(roots, 2, 2))
	issuers := []interfaces.TrustIssuer{
		issuerFor(t, roots[0], next),
		issuerFor(t, roots[1], next),
	}

	result := Validate(next, issuers, &previous)
	assert.False(t, result.ChainValid)
	assert.False(t, result.Valid)
}

func TestValidate_ThresholdBoundary(t *testing.T) {
	roots := newTestRoots(t, 5)
	previous := manifestOf(roots, 1, 3)
	next := chainTo(t, previous, manifestOf(roots, 2, 3))

	// Exactly T-1 valid signatures.
	issuers := []interfaces.TrustIssuer{
		issuerFor(t, roots[0], next),
		issuerFor(t, roots[1], next),
	}
	result := Validate(next, issuers, &previous)
	assert.False(t, result.ThresholdMet)
	assert.Contains(t, result.Errors, "Insufficient signatures: 2/3")

	// Exactly T.
	issuers = append(issuers, issuerFor(t, roots[2], next))
	result = Validate(next, issuers, &previous)
	assert.True(t, result.ThresholdMet)
	assert.True(t, result.Valid)
}

func TestValidate_ThresholdGatedAgainstPrior(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 3)

	// The proposal lowers the threshold to 1; one signature must not suffice
	// to adopt it.
	next := chainTo(t, previous, manifestOf(roots, 2, 1))
	issuers := []interfaces.TrustIssuer{issuerFor(t, roots[0], next)}

	result := Validate(next, issuers, &previous)
	assert.False(t, result.ThresholdMet)
	assert.Contains(t, result.Errors, "Insufficient signatures: 1/3")
}

func TestValidate_DuplicateSignaturesDoNotInflateCount(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 2)
	next := chainTo(t, previous, manifestOf(roots, 2, 2))

	issuer := issuerFor(t, roots[0], next)
	result := Validate(next, []interfaces.TrustIssuer{issuer, issuer, issuer}, &previous)
	assert.False(t, result.ThresholdMet)
	assert.Contains(t, result.Errors, "Insufficient signatures: 1/2")
}

func TestValidate_SpoofedIssuerRejected(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 2)
	next := chainTo(t, previous, manifestOf(roots, 2, 2))

	// The attacker signs with their own key but claims root-1's id.
	attacker, err := cryptoutils.GenerateSigner()
	require.NoError(t, err)
	canonical, err := cryptoutils.Canonicalize(next)
	require.NoError(t, err)
	spoofed := interfaces.TrustIssuer{
		RootID:    roots[0].id,
		PublicKey: attacker.PublicKeyB64u(),
		Signature: attacker.Sign(canonical),
	}

	result := Validate(next, []interfaces.TrustIssuer{spoofed, issuerFor(t, roots[1], next)}, &previous)
	assert.False(t, result.SignaturesValid)
	assert.False(t, result.ThresholdMet)
	assert.False(t, result.Valid)
}

func TestValidate_UnknownRootAndBadSignatureExcluded(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 2)
	next := chainTo(t, previous, manifestOf(roots, 2, 2))

	unknown := issuerFor(t, testRoot{id: "ghost", signer: roots[0].signer}, next)
	garbled := issuerFor(t, roots[1], next)
	garbled.Signature = "AAAA"

	result := Validate(next, []interfaces.TrustIssuer{unknown, garbled, issuerFor(t, roots[2], next)}, &previous)
	assert.False(t, result.SignaturesValid)
	assert.Contains(t, result.Errors, `Signature references unknown root "ghost"`)
	assert.Contains(t, result.Errors, `Invalid signature from root "root-2"`)
	// Only root-3 counted.
	assert.False(t, result.ThresholdMet)
}

func TestValidate_SignaturesResolveAgainstPreviousRoots(t *testing.T) {
	roots := newTestRoots(t, 3)
	previous := manifestOf(roots, 1, 2)

	// The target replaces every root; signatures from the new roots must not
	// count, only signatures from the roots being replaced.
	newRoots := newTestRoots(t, 3)
	next := chainTo(t, previous, manifestOf(newRoots, 2, 2))

	fromNew := []interfaces.TrustIssuer{
		issuerFor(t, newRoots[0], next),
		issuerFor(t, newRoots[1], next),
	}
	result := Validate(next, fromNew, &previous)
	assert.False(t, result.Valid, "new roots cannot vote themselves in")

	fromOld := []interfaces.TrustIssuer{
		issuerFor(t, roots[0], next),
		issuerFor(t, roots[1], next),
	}
	result = Validate(next, fromOld, &previous)
	assert.True(t, result.Valid)
}
