package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// EndpointSource yields the co-signer notification endpoints current at call
// time.
type EndpointSource interface {
	Endpoints(ctx context.Context) ([]string, error)
}

// StaticEndpoints is a fixed endpoint list.
type StaticEndpoints []string

// Endpoints returns the configured list.
func (s StaticEndpoints) Endpoints(ctx context.Context) ([]string, error) {
	return s, nil
}

// MultiSource concatenates several endpoint sources, typically a static list
// plus SRV discovery. Sources that fail are skipped so one broken resolver
// does not silence the others; their errors are joined into the result.
type MultiSource []EndpointSource

// Endpoints resolves all sources and merges their results.
func (m MultiSource) Endpoints(ctx context.Context) ([]string, error) {
	var all []string
	var errs []error
	for _, source := range m {
		endpoints, err := source.Endpoints(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, endpoints...)
	}
	if len(all) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return all, errors.Join(errs...)
}

// HTTPPublisher delivers pending operations to co-signers over HTTP. Each
// endpoint receives a POST with the JSON-encoded operation.
type HTTPPublisher struct {
	source     EndpointSource
	httpClient *http.Client
	log        *slog.Logger
}

// NewHTTPPublisher creates a publisher. A nil httpClient gets a 10 second
// timeout default; co-signer notification must never stall the signing path
// for long.
func NewHTTPPublisher(source EndpointSource, httpClient *http.Client, log *slog.Logger) *HTTPPublisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPublisher{source: source, httpClient: httpClient, log: log}
}

// PublishOperation sends the operation to every resolved endpoint. Failures
// are joined and returned for logging; a partial delivery is not retried
// here.
func (p *HTTPPublisher) PublishOperation(ctx context.Context, op interfaces.TrustOperation) error {
	endpoints, err := p.source.Endpoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve co-signer endpoints: %w", err)
	}

	body, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to encode operation: %w", err)
	}

	var errs []error
	for _, endpoint := range endpoints {
		if err := p.post(ctx, endpoint, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}
		p.log.Debug("Notified co-signer of pending operation",
			slog.String("endpoint", endpoint),
			slog.String("operationId", op.ID))
	}
	return errors.Join(errs...)
}

func (p *HTTPPublisher) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
