package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerVerbosity(t *testing.T) {
	logger, err := NewLogger(DEBUG, true)
	require.NoError(t, err)

	assert.True(t, logger.V(DEFAULT).Enabled())
	assert.True(t, logger.V(DEBUG).Enabled())
	assert.False(t, logger.V(TRACE).Enabled())

	SetVerbosity(DEFAULT)
	assert.False(t, logger.V(VERBOSE).Enabled(), "shared level must apply to loggers already built")

	SetVerbosity(-3)
	assert.True(t, logger.Enabled())
	assert.False(t, logger.V(1).Enabled())
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	assert.True(t, logger.V(TRACE).Enabled())
	logger.WithValues("service", "cache").V(DEBUG).Info("test logger works")
}
