package trust

import (
	"fmt"

	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// Validate checks a manifest against its issuer signatures and optional chain
// predecessor, producing a full validation report. It never returns an error:
// an empty issuer list, spoofed issuer records, and broken chains are all
// expected inputs and show up as flags plus human-readable entries in Errors.
//
// When previous is non-nil, signatures resolve against the previous manifest's
// roots and the threshold is the previous manifest's threshold. A proposed
// manifest is always judged by the root set it is replacing, so a minority
// cannot unilaterally lower the bar by shipping a permissive target.
func Validate(manifest interfaces.TrustManifest, issuers []interfaces.TrustIssuer, previous *interfaces.TrustManifest) interfaces.TrustValidation {
	result := interfaces.TrustValidation{
		ManifestValid:   true,
		SignaturesValid: true,
		ThresholdMet:    true,
		ChainValid:      true,
		Errors:          []string{},
	}

	// Structural checks.
	if len(manifest.Roots) == 0 {
		result.ManifestValid = false
		result.Errors = append(result.Errors, "Manifest must contain at least one trust root")
	}
	if manifest.Threshold < 1 || manifest.Threshold > len(manifest.Roots) {
		result.ManifestValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid threshold %d for %d roots", manifest.Threshold, len(manifest.Roots)))
	}
	seen := make(map[string]struct{}, len(manifest.Roots))
	for _, root := range manifest.Roots {
		if _, dup := seen[root.ID]; dup {
			result.ManifestValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate root id %q", root.ID))
		}
		seen[root.ID] = struct{}{}
	}

	// Chain linkage against the predecessor.
	if previous != nil {
		prevCanonical, err := cryptoutils.Canonicalize(previous)
		if err != nil {
			result.ChainValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to canonicalize previous manifest: %v", err))
		} else if manifest.PrecedingHash != cryptoutils.HashB64u(prevCanonical) {
			result.ChainValid = false
			result.Errors = append(result.Errors, "Manifest chain integrity violation")
		}
		if manifest.Version <= previous.Version {
			result.ChainValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Manifest version %d does not increase past %d", manifest.Version, previous.Version))
		}
	}

	// Signatures resolve against the roots empowered to authorize the change:
	// the predecessor's roots when one exists, the manifest's own otherwise
	// (self-signed genesis).
	signingManifest := manifest
	if previous != nil {
		signingManifest = *previous
	}

	canonical, canonErr := cryptoutils.Canonicalize(manifest)
	if canonErr != nil {
		result.SignaturesValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to canonicalize manifest: %v", canonErr))
	}

	validSigners := make(map[string]struct{})
	for _, issuer := range issuers {
		if canonErr != nil {
			break
		}
		root, ok := signingManifest.RootByID(issuer.RootID)
		if !ok {
			result.SignaturesValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Signature references unknown root %q", issuer.RootID))
			continue
		}
		if root.PublicKey != issuer.PublicKey {
			result.SignaturesValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Issuer public key does not match root %q", issuer.RootID))
			continue
		}
		if !cryptoutils.VerifySignature(canonical, issuer.Signature, issuer.PublicKey) {
			result.SignaturesValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid signature from root %q", issuer.RootID))
			continue
		}
		// Duplicate signatures from one root never inflate the count.
		validSigners[issuer.RootID] = struct{}{}
	}

	required := manifest.Threshold
	if previous != nil {
		required = previous.Threshold
	}
	if len(validSigners) < required {
		result.ThresholdMet = false
		result.Errors = append(result.Errors, fmt.Sprintf("Insufficient signatures: %d/%d", len(validSigners), required))
	}

	result.Valid = result.ManifestValid && result.SignaturesValid && result.ThresholdMet && result.ChainValid
	return result
}
