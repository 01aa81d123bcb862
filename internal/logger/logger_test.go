package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	require.Contains(t, buf.String(), `"message":"shown"`)
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "loud", "json")

	log.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}

func TestParseLevelAcceptsZerologNames(t *testing.T) {
	require.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
	require.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	require.Equal(t, zerolog.Disabled, parseLevel("disabled"))
	require.Equal(t, zerolog.InfoLevel, parseLevel(""))
	require.Equal(t, zerolog.InfoLevel, parseLevel("warning"))
}
