package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one line of the JSONL audit log.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
}

// JSONLSink appends audit events to a file, one JSON object per line. Writes
// are serialized; the file is opened append-only so concurrent processes
// interleave whole lines at worst.
type JSONLSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewJSONLSink creates or opens the log file, creating parent directories as
// needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &JSONLSink{f: f}, nil
}

// Emit appends one event line.
func (s *JSONLSink) Emit(ctx context.Context, event string, payload map[string]any) error {
	record := Record{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Payload:   payload,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
