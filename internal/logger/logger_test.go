package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"socialize/internal/config"

	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.EnvProduction, &buf)

	log.Info("session swept", "count", 3)
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "session swept", entry["msg"])
	require.EqualValues(t, 3, entry["count"])
}

func TestNew_DevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.EnvDevelopment, &buf)

	log.Debug("presence updated", "entries", 2)

	require.Contains(t, buf.String(), "msg=\"presence updated\"")
	require.Contains(t, buf.String(), "entries=2")
}
