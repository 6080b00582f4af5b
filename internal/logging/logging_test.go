package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tochemey/goakt/v3/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"", log.InfoLevel},
		{" warn ", log.WarningLevel},
		{"warning", log.WarningLevel},
		{"error", log.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, "loud")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("info", &buf)
	require.NoError(t, err)
	l.Info("flock ready")
	assert.Contains(t, buf.String(), "flock ready")

	off, err := New("off", &buf)
	require.NoError(t, err)
	assert.Equal(t, log.DiscardLogger, off)

	_, err = New("loud", &buf)
	assert.Error(t, err)
}
