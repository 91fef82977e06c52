package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
	"github.com/ruteri/trust-rotation-backend/storage"
	"github.com/ruteri/trust-rotation-backend/trust"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := storage.NewMemoryStore()
	factory := func(namespace string) (*trust.Engine, error) {
		return trust.NewEngine(trust.Config{
			Namespace: namespace,
			Store:     store,
			Log:       slog.Default(),
		})
	}

	srv, err := New(&HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.Default(),
	}, NewHandler(factory, slog.Default()))
	require.NoError(t, err)

	return srv.getRouter()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type apiSigner struct {
	id     string
	signer *cryptoutils.Signer
}

func newAPISigners(t *testing.T, n int) []apiSigner {
	t.Helper()
	signers := make([]apiSigner, 0, n)
	for i := 0; i < n; i++ {
		signer, err := cryptoutils.GenerateSigner()
		require.NoError(t, err)
		signers = append(signers, apiSigner{id: fmt.Sprintf("root-%d", i+1), signer: signer})
	}
	return signers
}

func initBody(signers []apiSigner, threshold int) initRequest {
	roots := make([]interfaces.TrustRoot, 0, len(signers))
	for _, s := range signers {
		roots = append(roots, interfaces.TrustRoot{
			ID:        s.id,
			PublicKey: s.signer.PublicKeyB64u(),
			Role:      interfaces.RolePrimary,
			CreatedAt: time.Now().UTC(),
		})
	}
	return initRequest{Roots: roots, Threshold: threshold}
}

func issuerBody(t *testing.T, s apiSigner, target interfaces.TrustManifest) interfaces.TrustIssuer {
	t.Helper()
	canonical, err := cryptoutils.Canonicalize(target)
	require.NoError(t, err)
	return interfaces.TrustIssuer{
		RootID:    s.id,
		PublicKey: s.signer.PublicKeyB64u(),
		Signature: s.signer.Sign(canonical),
	}
}

// chainedTarget builds the successor manifest for a state fetched over the
// API, with the preceding hash computed the way signers compute it.
func chainedTarget(t *testing.T, current interfaces.TrustManifest, mutate func(*interfaces.TrustManifest)) interfaces.TrustManifest {
	t.Helper()
	canonical, err := cryptoutils.Canonicalize(current)
	require.NoError(t, err)

	target := current
	target.Version = current.Version + 1
	target.CreatedAt = time.Now().UTC()
	target.PrecedingHash = cryptoutils.HashB64u(canonical)
	target.Roots = append([]interfaces.TrustRoot{}, current.Roots...)
	if mutate != nil {
		mutate(&target)
	}
	return target
}

func TestHandler_InitAndGetState(t *testing.T) {
	router := newTestRouter(t)
	signers := newAPISigners(t, 3)

	rec := doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/init", initBody(signers, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	state := decodeBody[interfaces.TrustState](t, rec)
	assert.Equal(t, uint64(1), state.CurrentManifest.Version)
	assert.Equal(t, "acme-corp", state.CurrentManifest.Namespace)

	rec = doJSON(t, router, http.MethodGet, "/api/trust/acme-corp/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody[interfaces.TrustState](t, rec)
	assert.Equal(t, state.CurrentManifest.Version, fetched.CurrentManifest.Version)
	assert.Len(t, fetched.CurrentManifest.Roots, 3)

	// A second init on the same namespace is refused.
	rec = doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/init", initBody(signers, 2))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_StateOfUninitializedNamespace(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/trust/ghost/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_InvalidNamespace(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/trust/Not_A_Namespace/state", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_BadRequestBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/trust/acme-corp/init", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_FullRotationOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	signers := newAPISigners(t, 3)

	rec := doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/init", initBody(signers, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeBody[interfaces.TrustState](t, rec)

	target := chainedTarget(t, state.CurrentManifest, func(m *interfaces.TrustManifest) {
		m.Threshold = 3
	})

	rec = doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/operations", createOperationRequest{
		Type:           interfaces.OpThresholdUpdate,
		TargetManifest: target,
		Reason:         "require all signers",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	op := decodeBody[interfaces.TrustOperation](t, rec)
	require.NotEmpty(t, op.ID)

	// First signature is below threshold, the operation stays pending.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/trust/acme-corp/operations/%s/signatures", op.ID),
		issuerBody(t, signers[0], op.TargetManifest))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[signResponse](t, rec)
	assert.True(t, first.Accepted)
	assert.False(t, first.Applied)
	require.NotNil(t, first.Operation)
	assert.Len(t, first.Operation.Issuers, 1)

	// An explicit apply before threshold is refused and keeps the operation
	// pending.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/trust/acme-corp/operations/%s/apply", op.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Second signature reaches the threshold and applies in the same call.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/trust/acme-corp/operations/%s/signatures", op.ID),
		issuerBody(t, signers[1], op.TargetManifest))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeBody[signResponse](t, rec)
	assert.True(t, second.Accepted)
	assert.True(t, second.Applied)
	assert.Nil(t, second.Operation, "applied operation must leave the pending set")

	rec = doJSON(t, router, http.MethodGet, "/api/trust/acme-corp/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decodeBody[interfaces.TrustState](t, rec)
	assert.Equal(t, uint64(2), final.CurrentManifest.Version)
	assert.Equal(t, 3, final.CurrentManifest.Threshold)
	assert.Empty(t, final.PendingOperations)
	require.Len(t, final.OperationHistory, 1)
	assert.Equal(t, op.ID, final.OperationHistory[0].ID)
}

func TestHandler_SignUnknownOperation(t *testing.T) {
	router := newTestRouter(t)
	signers := newAPISigners(t, 2)

	rec := doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/init", initBody(signers, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost,
		"/api/trust/acme-corp/operations/no-such-op/signatures",
		issuerBody(t, signers[0], interfaces.TrustManifest{}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ActiveRootsAndTrustedKey(t *testing.T) {
	router := newTestRouter(t)
	signers := newAPISigners(t, 2)

	rec := doJSON(t, router, http.MethodPost, "/api/trust/acme-corp/init", initBody(signers, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/trust/acme-corp/roots/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roots := decodeBody[activeRootsResponse](t, rec)
	assert.Len(t, roots.Roots, 2)

	trustedPath := fmt.Sprintf("/api/trust/acme-corp/trusted/%s", signers[0].signer.PublicKeyB64u())
	rec = doJSON(t, router, http.MethodGet, trustedPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trusted := decodeBody[trustedKeyResponse](t, rec)
	assert.True(t, trusted.Trusted)

	rec = doJSON(t, router, http.MethodGet, "/api/trust/acme-corp/trusted/bm90LWEta2V5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unknown := decodeBody[trustedKeyResponse](t, rec)
	assert.False(t, unknown.Trusted)

	// Uninitialized namespaces answer with empty, not errors.
	rec = doJSON(t, router, http.MethodGet, "/api/trust/ghost/roots/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ghostRoots := decodeBody[activeRootsResponse](t, rec)
	assert.Empty(t, ghostRoots.Roots)
}

func TestHandler_Migration(t *testing.T) {
	router := newTestRouter(t)
	signers := newAPISigners(t, 3)

	adminKeys := make([]string, 0, len(signers))
	for _, s := range signers {
		adminKeys = append(adminKeys, s.signer.PublicKeyB64u())
	}

	manifest := trust.MigrationManifest("legacy-ns", adminKeys)
	canonical, err := cryptoutils.Canonicalize(manifest)
	require.NoError(t, err)

	migrationSig := func(s apiSigner) interfaces.MigrationSignature {
		return interfaces.MigrationSignature{
			PublicKey: s.signer.PublicKeyB64u(),
			Signature: s.signer.Sign(canonical),
		}
	}

	// One of three admins is short of the majority; nothing is persisted.
	rec := doJSON(t, router, http.MethodPost, "/api/trust/legacy-ns/migrate", migrateRequest{
		AdminKeys:  adminKeys,
		Signatures: []interfaces.MigrationSignature{migrationSig(signers[0])},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	partial := decodeBody[interfaces.TrustMigration](t, rec)
	assert.Nil(t, partial.CompletedAt)

	rec = doJSON(t, router, http.MethodGet, "/api/trust/legacy-ns/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A majority completes the migration.
	rec = doJSON(t, router, http.MethodPost, "/api/trust/legacy-ns/migrate", migrateRequest{
		AdminKeys: adminKeys,
		Signatures: []interfaces.MigrationSignature{
			migrationSig(signers[0]),
			migrationSig(signers[1]),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decodeBody[interfaces.TrustMigration](t, rec)
	assert.NotNil(t, completed.CompletedAt)

	rec = doJSON(t, router, http.MethodGet, "/api/trust/legacy-ns/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[interfaces.TrustState](t, rec)
	assert.Equal(t, uint64(1), state.CurrentManifest.Version)
	assert.Equal(t, 2, state.CurrentManifest.Threshold)
	assert.Len(t, state.CurrentManifest.Roots, 3)
}

func TestServer_HealthAndDrainLifecycle(t *testing.T) {
	store := storage.NewMemoryStore()
	factory := func(namespace string) (*trust.Engine, error) {
		return trust.NewEngine(trust.Config{Namespace: namespace, Store: store, Log: slog.Default()})
	}
	srv, err := New(&HTTPServerConfig{
		ListenAddr:    "127.0.0.1:0",
		Log:           slog.Default(),
		DrainDuration: time.Millisecond,
	}, NewHandler(factory, slog.Default()))
	require.NoError(t, err)
	router := srv.getRouter()

	rec := doJSON(t, router, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/drain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/undrain", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
