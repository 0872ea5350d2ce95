package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())

	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=test")
}

func TestNewWithWriterDefaultsToInfo(t *testing.T) {
	log, err := NewWithWriter(&bytes.Buffer{}, "")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log, err = NewWithWriter(&bytes.Buffer{}, "DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewWithWriterRejectsUnknownLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "chatty")
	assert.Error(t, err)
}
