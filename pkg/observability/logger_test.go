package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("set_id", "s1").Info("category created")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "category created", entry["msg"])
	assert.Equal(t, "s1", entry["set_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("suppressed")
	assert.Zero(t, buf.Len())

	logger.Warnf("slow %s", "rewrite")
	assert.NotZero(t, buf.Len())
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("boom")).Error("store failed")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])

	// nil error adds nothing
	assert.Same(t, logger, logger.WithError(nil))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithActor(ctx, "acct1")
	ctx = WithOwnPaths(ctx, "t001/a001")

	assert.Equal(t, "acct1", GetActor(ctx))
	assert.Equal(t, "t001/a001", GetOwnPaths(ctx))

	FromContext(ctx).Info("scoped")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "acct1", entry["actor"])
	assert.Equal(t, "t001/a001", entry["own_paths"])
}
