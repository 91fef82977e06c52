package trust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// loadState fetches and decodes the namespace's TrustState record. Returns
// ErrNotInitialized when no record exists. Callers on read paths translate
// all failures into degraded defaults; write paths propagate them.
func (e *Engine) loadState(ctx context.Context) (*interfaces.TrustState, error) {
	data, err := e.store.GetItem(ctx, interfaces.StateKey(e.namespace))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load trust state: %w", err)
	}

	var state interfaces.TrustState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed persisted trust state: %w", err)
	}
	return &state, nil
}

// persistState writes the whole TrustState record back. The record is small
// (one manifest, pending operations, history) so whole-record replacement
// keeps the storage contract down to plain key-value.
func (e *Engine) persistState(ctx context.Context, state *interfaces.TrustState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode trust state: %w", err)
	}
	if err := e.store.SetItem(ctx, interfaces.StateKey(e.namespace), data); err != nil {
		return fmt.Errorf("failed to persist trust state: %w", err)
	}
	return nil
}

// stateExists reports whether a TrustState record is already persisted for
// the namespace.
func (e *Engine) stateExists(ctx context.Context) (bool, error) {
	_, err := e.store.GetItem(ctx, interfaces.StateKey(e.namespace))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe trust state: %w", err)
}
