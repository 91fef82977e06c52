package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error formats the status and response body.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with code %d: %s", e.StatusCode, e.Body)
}

// TrustClient talks to one namespace of a trust rotation server. It handles
// request encoding, response parsing, and error surfacing.
type TrustClient struct {
	baseURL    string
	namespace  string
	httpClient *http.Client
}

// NewTrustClient creates a client for a namespace on the given server.
//
// Parameters:
//   - baseURL: The server base URL (e.g., "http://localhost:8080")
//   - namespace: The trust namespace to operate on
//   - timeout: Request timeout duration (optional, default 30 seconds)
func NewTrustClient(baseURL, namespace string, timeout ...time.Duration) *TrustClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &TrustClient{
		baseURL:    baseURL,
		namespace:  namespace,
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// InitRequest describes the genesis manifest for Initialize.
type InitRequest struct {
	Roots     []interfaces.TrustRoot `json:"roots"`
	Threshold int                    `json:"threshold"`
}

// CreateOperationRequest describes a proposed manifest change.
type CreateOperationRequest struct {
	Type           interfaces.OperationType `json:"type"`
	TargetManifest interfaces.TrustManifest `json:"targetManifest"`
	Reason         string                   `json:"reason,omitempty"`
}

// SignResult reports the outcome of submitting a signature.
type SignResult struct {
	Accepted  bool                       `json:"accepted"`
	Applied   bool                       `json:"applied"`
	Operation *interfaces.TrustOperation `json:"operation,omitempty"`
}

// MigrateRequest carries the legacy admin set and collected signatures.
type MigrateRequest struct {
	AdminKeys  []string                        `json:"adminKeys"`
	Signatures []interfaces.MigrationSignature `json:"signatures"`
}

// Initialize establishes the genesis trust state for the namespace.
func (c *TrustClient) Initialize(ctx context.Context, req InitRequest) (*interfaces.TrustState, error) {
	var state interfaces.TrustState
	if err := c.do(ctx, http.MethodPost, c.path("init"), req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetState fetches the namespace's full trust state.
func (c *TrustClient) GetState(ctx context.Context) (*interfaces.TrustState, error) {
	var state interfaces.TrustState
	if err := c.do(ctx, http.MethodGet, c.path("state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CreateOperation registers a proposed manifest change and returns the
// pending operation, including its server-assigned id.
func (c *TrustClient) CreateOperation(ctx context.Context, req CreateOperationRequest) (*interfaces.TrustOperation, error) {
	var op interfaces.TrustOperation
	if err := c.do(ctx, http.MethodPost, c.path("operations"), req, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// SubmitSignature attaches an issuer signature to a pending operation.
func (c *TrustClient) SubmitSignature(ctx context.Context, operationID string, issuer interfaces.TrustIssuer) (*SignResult, error) {
	var result SignResult
	path := c.path("operations", operationID, "signatures")
	if err := c.do(ctx, http.MethodPost, path, issuer, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApplyOperation asks the server to apply a pending operation. A validation
// refusal is not an error: the operation simply needs more signatures, so the
// call returns false with a nil error.
func (c *TrustClient) ApplyOperation(ctx context.Context, operationID string) (bool, error) {
	var result struct {
		Applied bool `json:"applied"`
	}
	err := c.do(ctx, http.MethodPost, c.path("operations", operationID, "apply"), nil, &result)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return false, nil
		}
		return false, err
	}
	return result.Applied, nil
}

// GetActiveRoots fetches the currently active roots.
func (c *TrustClient) GetActiveRoots(ctx context.Context) ([]interfaces.TrustRoot, error) {
	var result struct {
		Roots []interfaces.TrustRoot `json:"roots"`
	}
	if err := c.do(ctx, http.MethodGet, c.path("roots", "active"), nil, &result); err != nil {
		return nil, err
	}
	return result.Roots, nil
}

// IsTrustedKey asks whether a public key belongs to an active root.
func (c *TrustClient) IsTrustedKey(ctx context.Context, publicKeyB64u string) (bool, error) {
	var result struct {
		Trusted bool `json:"trusted"`
	}
	if err := c.do(ctx, http.MethodGet, c.path("trusted", publicKeyB64u), nil, &result); err != nil {
		return false, err
	}
	return result.Trusted, nil
}

// Migrate submits a legacy migration request.
func (c *TrustClient) Migrate(ctx context.Context, req MigrateRequest) (*interfaces.TrustMigration, error) {
	var migration interfaces.TrustMigration
	if err := c.do(ctx, http.MethodPost, c.path("migrate"), req, &migration); err != nil {
		return nil, err
	}
	return &migration, nil
}

func (c *TrustClient) path(segments ...string) string {
	p := fmt.Sprintf("%s/api/trust/%s", c.baseURL, url.PathEscape(c.namespace))
	for _, segment := range segments {
		p += "/" + url.PathEscape(segment)
	}
	return p
}

func (c *TrustClient) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
