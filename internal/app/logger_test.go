package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		level    string
		debugOn  bool
		warnOnly bool
	}{
		{"development default", "development", "", true, false},
		{"production default", "production", "", false, false},
		{"production debug", "production", "debug", true, false},
		{"development warn", "development", "warn", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)

			core := logger.Core()
			assert.Equal(t, tt.debugOn, core.Enabled(zapcore.DebugLevel))
			assert.Equal(t, !tt.warnOnly, core.Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("production", "loud")
	assert.Error(t, err)
}
