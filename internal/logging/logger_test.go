package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetupLogger(t *testing.T) {
	logger, atom, err := SetupLogger(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zap.DebugLevel, atom.Level())

	logger, atom, err = SetupLogger(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zap.InfoLevel, atom.Level())
}

func TestParseLevel(t *testing.T) {
	_, atom, err := SetupLogger(false)
	require.NoError(t, err)

	require.NoError(t, ParseLevel(atom, "warn"))
	assert.Equal(t, zap.WarnLevel, atom.Level())

	require.NoError(t, ParseLevel(atom, ""))
	assert.Equal(t, zap.WarnLevel, atom.Level())

	assert.Error(t, ParseLevel(atom, "loud"))
}
