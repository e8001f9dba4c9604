package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew_Development(t *testing.T) {
	log, err := New("development")
	assert.NoError(t, err)
	assert.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_Production(t *testing.T) {
	log, err := New("production")
	assert.NoError(t, err)
	assert.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_UnknownEnvFallsBackToDevelopment(t *testing.T) {
	log, err := New("staging")
	assert.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}
