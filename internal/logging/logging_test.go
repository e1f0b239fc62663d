package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_BuildsJSONLoggerAtRequestedLevel(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_BuildsConsoleLogger(t *testing.T) {
	logger, err := New("info", "console")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestParseLevel_MapsTraceToDebug(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("trace"))
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("anything-else"))
}

func TestDefault_BuildsInfoJSONLogger(t *testing.T) {
	logger, err := Default()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestForComponentAndForSession_AttachFields(t *testing.T) {
	base, err := Default()
	require.NoError(t, err)

	comp := ForComponent(base, "fusion")
	require.NotNil(t, comp)

	sess := ForSession(comp, "abc-123")
	require.NotNil(t, sess)
}
