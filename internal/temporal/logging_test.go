package temporal

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLogAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLogAdapter(zerolog.New(&buf))

	adapter.Warn("Activity failed", "ActivityID", "7", "error", errors.New("boom"), "dangling")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "temporal", entry["component"])
	assert.Equal(t, "7", entry["ActivityID"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "MISSING_VALUE", entry["dangling"])

	adapter.With("WorkflowID", "etl-batch-1").Info("Started")
	entry = lastEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "etl-batch-1", entry["WorkflowID"])
	assert.Equal(t, "Started", entry["message"])
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "etl-batch-abc", WorkflowID("abc"))
}
