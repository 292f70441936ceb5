package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug().Str("sql", "SELECT 1").Msg("exec")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "debug", event["level"])
	assert.Equal(t, "SELECT 1", event["sql"])
	assert.Equal(t, "graphorm", event["component"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(config.LoggingConfig{}, &buf)
	require.NoError(t, err)

	l.Info().Str("table", "posts").Msg("creating table")
	assert.Contains(t, buf.String(), "| INFO  |")
	assert.Contains(t, buf.String(), "table=posts")
	assert.Contains(t, buf.String(), "creating table")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := logging.New(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
