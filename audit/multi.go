package audit

import (
	"context"
	"errors"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

// MultiSink fans audit events out to several sinks. Every sink sees every
// event; errors are joined so a failing sink does not starve the others.
type MultiSink struct {
	sinks []interfaces.AuditSink
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(sinks ...interfaces.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit delivers the event to all sinks.
func (s *MultiSink) Emit(ctx context.Context, event string, payload map[string]any) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
