package interfaces

import (
	"fmt"
	"time"
)

// RootRole classifies a trust root within a manifest.
type RootRole string

const (
	// RolePrimary is a day-to-day signing root.
	RolePrimary RootRole = "PRIMARY"
	// RoleSecondary is a backup signing root.
	RoleSecondary RootRole = "SECONDARY"
	// RoleEmergency is a break-glass root, typically held under split custody.
	RoleEmergency RootRole = "EMERGENCY"
)

// Validate checks that the role is one of the known values.
func (r RootRole) Validate() error {
	switch r {
	case RolePrimary, RoleSecondary, RoleEmergency:
		return nil
	default:
		return fmt.Errorf("unknown root role %q", string(r))
	}
}

// OperationType identifies the kind of manifest change an operation proposes.
// The set is closed so new kinds force an explicit decision at every switch.
type OperationType string

const (
	OpRootAdd         OperationType = "ROOT_ADD"
	OpRootRemove      OperationType = "ROOT_REMOVE"
	OpThresholdUpdate OperationType = "THRESHOLD_UPDATE"
	OpKeyRotate       OperationType = "KEY_ROTATE"
)

// Validate checks that the operation type is one of the known values.
func (t OperationType) Validate() error {
	switch t {
	case OpRootAdd, OpRootRemove, OpThresholdUpdate, OpKeyRotate:
		return nil
	default:
		return fmt.Errorf("unknown operation type %q", string(t))
	}
}

// TrustRoot is a named Ed25519 public key authorized to co-sign trust changes.
// PublicKey holds the raw 32-byte key, base64url-encoded without padding.
type TrustRoot struct {
	ID        string     `json:"id"`
	PublicKey string     `json:"publicKey"`
	Role      RootRole   `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// ActiveAt reports whether the root is usable at the given instant. An expired
// root stays in its manifest for chain verification but is excluded from
// active queries.
func (r TrustRoot) ActiveAt(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// TrustManifest is the complete description of a namespace's root set and
// signature threshold at one version. PrecedingHash is the base64url SHA-256
// of the canonical encoding of the previous manifest; it is empty only for a
// manifest with no predecessor.
type TrustManifest struct {
	Version       uint64      `json:"version"`
	Namespace     string      `json:"namespace"`
	Roots         []TrustRoot `json:"roots"`
	Threshold     int         `json:"threshold"`
	CreatedAt     time.Time   `json:"createdAt"`
	PrecedingHash string      `json:"precedingHash,omitempty"`
}

// RootByID looks up a root in the manifest.
func (m *TrustManifest) RootByID(id string) (TrustRoot, bool) {
	for _, root := range m.Roots {
		if root.ID == id {
			return root, true
		}
	}
	return TrustRoot{}, false
}

// ActiveRoots returns the roots usable at the given instant.
func (m *TrustManifest) ActiveRoots(now time.Time) []TrustRoot {
	active := make([]TrustRoot, 0, len(m.Roots))
	for _, root := range m.Roots {
		if root.ActiveAt(now) {
			active = append(active, root)
		}
	}
	return active
}

// TrustIssuer is one signature contribution to an operation. PublicKey must
// equal the referenced root's stored key so a spoofed issuer record cannot
// redirect verification to an attacker key. Signature covers the canonical
// encoding of the operation's target manifest.
type TrustIssuer struct {
	RootID    string    `json:"rootId"`
	PublicKey string    `json:"publicKey"`
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signedAt"`
}

// TrustOperation is a proposed manifest change accumulating issuer signatures.
// Issuers grows by distinct RootID only; re-signing is a no-op.
type TrustOperation struct {
	ID             string        `json:"id"`
	Type           OperationType `json:"type"`
	Namespace      string        `json:"namespace"`
	TargetManifest TrustManifest `json:"targetManifest"`
	Issuers        []TrustIssuer `json:"issuers"`
	CreatedAt      time.Time     `json:"createdAt"`
	Reason         string        `json:"reason,omitempty"`
}

// HasIssuer reports whether a root already contributed a signature.
func (op *TrustOperation) HasIssuer(rootID string) bool {
	for _, issuer := range op.Issuers {
		if issuer.RootID == rootID {
			return true
		}
	}
	return false
}

// TrustState is the single persisted record of a namespace: the manifest in
// force, operations still collecting signatures in creation order, and the
// append-only history of applied operations in application order.
type TrustState struct {
	CurrentManifest   TrustManifest    `json:"currentManifest"`
	PendingOperations []TrustOperation `json:"pendingOperations"`
	OperationHistory  []TrustOperation `json:"operationHistory"`
	LastUpdated       time.Time        `json:"lastUpdated"`
}

// PendingOperation looks up a pending operation by id.
func (s *TrustState) PendingOperation(id string) (*TrustOperation, bool) {
	for i := range s.PendingOperations {
		if s.PendingOperations[i].ID == id {
			return &s.PendingOperations[i], true
		}
	}
	return nil, false
}

// TrustValidation is the result of validating a manifest against its issuers
// and optional predecessor. Validation failures are expected outcomes of a
// multi-party ceremony and are reported here, never as errors.
type TrustValidation struct {
	Valid           bool     `json:"valid"`
	ManifestValid   bool     `json:"manifestValid"`
	SignaturesValid bool     `json:"signaturesValid"`
	ThresholdMet    bool     `json:"thresholdMet"`
	ChainValid      bool     `json:"chainValid"`
	Errors          []string `json:"errors"`
}

// MigrationSignature is one admin signature over a synthesized migration
// manifest. Unlike TrustIssuer it carries no root id: the legacy scheme has no
// roots yet, only a flat key list.
type MigrationSignature struct {
	PublicKey string    `json:"publicKey"`
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signedAt"`
}

// TrustMigration records a one-shot bootstrap from a flat admin-key list. A
// nil CompletedAt means the signatures did not reach majority and nothing was
// persisted; the whole call must be retried with more signatures.
type TrustMigration struct {
	FromAdmins          []string             `json:"fromAdmins"`
	ToManifest          TrustManifest        `json:"toManifest"`
	MigrationSignatures []MigrationSignature `json:"migrationSignatures"`
	CompletedAt         *time.Time           `json:"completedAt,omitempty"`
}
