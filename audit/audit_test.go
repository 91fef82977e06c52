package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/trust-rotation-backend/interfaces"
)

func TestJSONLSink_AppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trust-audit.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	require.NoError(t, sink.Emit(ctx, interfaces.EventOperationCreated, map[string]any{"operationId": "op-1"}))
	require.NoError(t, sink.Emit(ctx, interfaces.EventOperationSigned, map[string]any{"operationId": "op-1", "rootId": "root-1"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, interfaces.EventOperationCreated, records[0].Event)
	assert.Equal(t, "op-1", records[0].Payload["operationId"])
	assert.Equal(t, interfaces.EventOperationSigned, records[1].Event)
	assert.False(t, records[0].Timestamp.IsZero())
}

type stubSink struct {
	events []string
	err    error
}

func (s *stubSink) Emit(ctx context.Context, event string, payload map[string]any) error {
	s.events = append(s.events, event)
	return s.err
}

func TestMultiSink_DeliversToAllDespiteFailure(t *testing.T) {
	failing := &stubSink{err: errors.New("sink down")}
	healthy := &stubSink{}
	sink := NewMultiSink(failing, healthy)

	err := sink.Emit(context.Background(), interfaces.EventTrustInitialized, nil)
	assert.Error(t, err)
	assert.Equal(t, []string{interfaces.EventTrustInitialized}, healthy.events)
}
