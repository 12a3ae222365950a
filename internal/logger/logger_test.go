package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesServiceAndTimestamp(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, "collectibles-api", zerolog.InfoLevel)

	l.Info().Str("holding_id", "h-1").Msg("delivery requested")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "collectibles-api", entry["service"])
	assert.Equal(t, "h-1", entry["holding_id"])
	assert.Equal(t, "info", entry["level"])

	ts, ok := entry["time"].(string)
	require.True(t, ok, "expected time field")
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, "collectibles-api", zerolog.InfoLevel)

	l.Debug().Msg("hidden")

	assert.Zero(t, buf.Len())
}
