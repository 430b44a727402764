package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Warn("coupon", "coupon summer10 not found")
	l.LogWebhook("payment.created", "123", "chk-1", "status approved")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "WARN", first.Level)
	assert.Equal(t, "COUPON", first.Category)
	assert.Equal(t, "logger_test.go", first.File)

	var second LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "WEBHOOK", second.Category)
	assert.Contains(t, second.Message, "payment=123 checkout=chk-1")
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.minLevel = WARN

	l.Info("APP", "hidden")
	l.Error("APP", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogWebhookFailureIsError(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.LogWebhookFailure("payment.updated", "123", "chk-1", "persist failed")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "WEBHOOK", entry.Category)
	assert.Equal(t, "logger_test.go", entry.File)
	assert.Contains(t, entry.Message, "[payment.updated] payment=123 checkout=chk-1 - persist failed")
}
