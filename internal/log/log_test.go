package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel tests level name mapping
func TestParseLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  zerolog.Level
	}{
		{level: DebugLevel, want: zerolog.DebugLevel},
		{level: "WARN", want: zerolog.WarnLevel},
		{level: ErrorLevel, want: zerolog.ErrorLevel},
		{level: InfoLevel, want: zerolog.InfoLevel},
		{level: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.level))
		})
	}
}

// TestWithComponent tests that component loggers tag their lines
func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})
	t.Cleanup(func() {
		Logger = zerolog.Nop()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	logger := WithComponent("tray")
	logger.Info().Msg("connected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tray", line["component"])
	assert.Equal(t, "connected", line["message"])
	assert.Equal(t, "info", line["level"])
}
