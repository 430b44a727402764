package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 1, 10, 18, 13, 30, 0, time.UTC)

	for _, raw := range []string{
		"2025-01-10T18:13:30Z",
		"2025-01-10T18:13:30.000Z",
		"2025-01-10T15:13:30-03:00",
		"2025-01-10 18:13:30",
	} {
		got, ok := ParseTimestamp(raw)
		assert.True(t, ok, raw)
		assert.True(t, want.Equal(got), raw)
	}

	_, ok := ParseTimestamp("not a date")
	assert.False(t, ok)
	_, ok = ParseTimestamp("")
	assert.False(t, ok)
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	now := time.Now()
	got, ok := ParseTimestamp(FormatTimestamp(now))
	assert.True(t, ok)
	assert.True(t, now.Equal(got))
}
