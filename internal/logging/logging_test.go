package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		want          zapcore.Level
	}{
		{"", "", zapcore.InfoLevel},
		{"debug", "json", zapcore.DebugLevel},
		{"warn", "console", zapcore.WarnLevel},
		{"ERROR", "json", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		log, err := New(tt.level, tt.format)
		require.NoError(t, err, "level=%q format=%q", tt.level, tt.format)
		assert.True(t, log.Core().Enabled(tt.want))
		assert.False(t, log.Core().Enabled(tt.want-1))
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
