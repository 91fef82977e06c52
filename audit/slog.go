package audit

import (
	"context"
	"log/slog"
)

// SlogSink forwards audit events to a structured logger.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a sink logging events at Info level.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

// Emit logs the event with its payload as attributes.
func (s *SlogSink) Emit(ctx context.Context, event string, payload map[string]any) error {
	attrs := make([]any, 0, 2*len(payload)+2)
	attrs = append(attrs, slog.String("event", event))
	for key, value := range payload {
		attrs = append(attrs, slog.Any(key, value))
	}
	s.log.InfoContext(ctx, "Trust audit event", attrs...)
	return nil
}
