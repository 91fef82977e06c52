package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"

	"github.com/ruteri/trust-rotation-backend/interfaces"
	"github.com/ruteri/trust-rotation-backend/trust"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024
)

// namespaceRe restricts namespaces to DNS-label style identifiers. The
// namespace is used in storage keys and audit records, so it must be safe
// to embed verbatim.
var namespaceRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// EngineFactory builds the trust engine for a namespace. The handler calls
// it at most once per namespace and caches the result.
type EngineFactory func(namespace string) (*trust.Engine, error)

// Handler processes HTTP requests for the trust rotation service. Engines
// are created lazily per namespace so a single server can govern many
// independent trust domains against the same storage backend.
type Handler struct {
	factory EngineFactory
	log     *slog.Logger

	mu      sync.Mutex
	engines map[string]*trust.Engine
}

// NewHandler creates an HTTP request handler backed by the given engine
// factory.
func NewHandler(factory EngineFactory, log *slog.Logger) *Handler {
	return &Handler{
		factory: factory,
		log:     log,
		engines: make(map[string]*trust.Engine),
	}
}

func (h *Handler) engine(namespace string) (*trust.Engine, *RequestError) {
	if !namespaceRe.MatchString(namespace) {
		return nil, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid namespace %q", namespace)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if engine, ok := h.engines[namespace]; ok {
		return engine, nil
	}
	engine, err := h.factory(namespace)
	if err != nil {
		return nil, &RequestError{http.StatusInternalServerError, fmt.Errorf("failed to build engine for %s: %w", namespace, err)}
	}
	h.engines[namespace] = engine
	return engine, nil
}

type initRequest struct {
	Roots     []interfaces.TrustRoot `json:"roots"`
	Threshold int                    `json:"threshold"`
}

type createOperationRequest struct {
	Type           interfaces.OperationType `json:"type"`
	TargetManifest interfaces.TrustManifest `json:"targetManifest"`
	Reason         string                   `json:"reason,omitempty"`
}

type signResponse struct {
	Accepted  bool                       `json:"accepted"`
	Applied   bool                       `json:"applied"`
	Operation *interfaces.TrustOperation `json:"operation,omitempty"`
}

type applyResponse struct {
	Applied bool `json:"applied"`
}

type activeRootsResponse struct {
	Roots []interfaces.TrustRoot `json:"roots"`
}

type trustedKeyResponse struct {
	PublicKey string `json:"publicKey"`
	Trusted   bool   `json:"trusted"`
}

type migrateRequest struct {
	AdminKeys  []string                        `json:"adminKeys"`
	Signatures []interfaces.MigrationSignature `json:"signatures"`
}

// HandleInit establishes the genesis manifest for a namespace.
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request, namespace string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	var req initRequest
	if rerr := h.decodeBody(r, &req); rerr != nil {
		h.respondError(w, rerr)
		return
	}

	state, err := engine.Initialize(r.Context(), trust.InitConfig{Roots: req.Roots, Threshold: req.Threshold})
	if err != nil {
		h.respondError(w, h.mapEngineError(err))
		return
	}

	h.respondJSON(w, http.StatusCreated, state)
}

// HandleCreateOperation registers a proposed manifest change.
func (h *Handler) HandleCreateOperation(w http.ResponseWriter, r *http.Request, namespace string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	var req createOperationRequest
	if rerr := h.decodeBody(r, &req); rerr != nil {
		h.respondError(w, rerr)
		return
	}
	if err := req.Type.Validate(); err != nil {
		h.respondError(w, &RequestError{http.StatusBadRequest, err})
		return
	}

	op, err := engine.CreateOperation(r.Context(), req.Type, req.TargetManifest, req.Reason)
	if err != nil {
		h.respondError(w, h.mapEngineError(err))
		return
	}

	h.respondJSON(w, http.StatusCreated, op)
}

// HandleSignOperation attaches an issuer signature to a pending operation.
// When the signature completes the threshold the operation is applied in the
// same request and the response reports it.
func (h *Handler) HandleSignOperation(w http.ResponseWriter, r *http.Request, namespace, operationID string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	var issuer interfaces.TrustIssuer
	if rerr := h.decodeBody(r, &issuer); rerr != nil {
		h.respondError(w, rerr)
		return
	}

	accepted, err := engine.SignOperation(r.Context(), operationID, issuer)
	if err != nil {
		h.respondError(w, h.mapEngineError(err))
		return
	}

	resp := signResponse{Accepted: accepted}
	if state := engine.GetState(r.Context()); state != nil {
		if op, ok := state.PendingOperation(operationID); ok {
			resp.Operation = op
		} else if accepted {
			for i := range state.OperationHistory {
				if state.OperationHistory[i].ID == operationID {
					resp.Applied = true
					break
				}
			}
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// HandleApplyOperation explicitly attempts to apply a pending operation.
func (h *Handler) HandleApplyOperation(w http.ResponseWriter, r *http.Request, namespace, operationID string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	applied, err := engine.ApplyOperation(r.Context(), operationID)
	if err != nil {
		h.respondError(w, h.mapEngineError(err))
		return
	}
	if !applied {
		// Validation failed, the operation stays pending for more signatures.
		h.respondJSON(w, http.StatusConflict, applyResponse{Applied: false})
		return
	}
	h.respondJSON(w, http.StatusOK, applyResponse{Applied: true})
}

// HandleGetState returns the full trust state for a namespace.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request, namespace string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	state := engine.GetState(r.Context())
	if state == nil {
		h.respondError(w, &RequestError{http.StatusNotFound, fmt.Errorf("namespace %s has no trust state", namespace)})
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// HandleActiveRoots returns the currently active, unexpired roots.
func (h *Handler) HandleActiveRoots(w http.ResponseWriter, r *http.Request, namespace string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	roots := engine.GetActiveRoots(r.Context())
	if roots == nil {
		roots = []interfaces.TrustRoot{}
	}
	h.respondJSON(w, http.StatusOK, activeRootsResponse{Roots: roots})
}

// HandleTrustedKey answers whether a public key belongs to an active root.
func (h *Handler) HandleTrustedKey(w http.ResponseWriter, r *http.Request, namespace, publicKey string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	h.respondJSON(w, http.StatusOK, trustedKeyResponse{
		PublicKey: publicKey,
		Trusted:   engine.IsTrustedKey(r.Context(), publicKey),
	})
}

// HandleMigrate bootstraps a namespace from a legacy admin key list.
func (h *Handler) HandleMigrate(w http.ResponseWriter, r *http.Request, namespace string) {
	engine, rerr := h.engine(namespace)
	if rerr != nil {
		h.respondError(w, rerr)
		return
	}

	var req migrateRequest
	if rerr := h.decodeBody(r, &req); rerr != nil {
		h.respondError(w, rerr)
		return
	}

	migration, err := engine.MigrateLegacy(r.Context(), req.AdminKeys, req.Signatures)
	if err != nil {
		h.respondError(w, h.mapEngineError(err))
		return
	}

	status := http.StatusOK
	if migration.CompletedAt == nil {
		// Majority not reached yet, nothing was persisted.
		status = http.StatusAccepted
	}
	h.respondJSON(w, status, migration)
}

func (h *Handler) decodeBody(r *http.Request, v any) *RequestError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return &RequestError{http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err)}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func (h *Handler) mapEngineError(err error) *RequestError {
	switch {
	case errors.Is(err, trust.ErrNotInitialized):
		return &RequestError{http.StatusConflict, err}
	case errors.Is(err, trust.ErrAlreadyInitialized):
		return &RequestError{http.StatusConflict, err}
	case errors.Is(err, trust.ErrOperationNotFound):
		return &RequestError{http.StatusNotFound, err}
	default:
		return &RequestError{http.StatusInternalServerError, err}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, rerr *RequestError) {
	if rerr.StatusCode >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", rerr.Err, slog.Int("status", rerr.StatusCode))
	} else {
		h.log.Debug("Request rejected", "err", rerr.Err, slog.Int("status", rerr.StatusCode))
	}
	h.respondJSON(w, rerr.StatusCode, map[string]string{"error": rerr.Error()})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
