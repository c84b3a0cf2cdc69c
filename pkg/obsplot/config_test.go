package obsplot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obsplot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 100, cfg.MaxClients)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: 8088
max_clients: 5
defaults:
  width: 480
  marginLeft: 60
  style:
    fontSize: 12px
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, 5, cfg.MaxClients)
	assert.Equal(t, 1000, cfg.HistorySize, "unset fields keep their defaults")

	defaults := cfg.PlotDefaults()
	assert.Equal(t, 480.0, defaults["width"])
	assert.Equal(t, 60.0, defaults["marginLeft"])
	style, ok := defaults["style"].(*value.Object)
	require.True(t, ok)
	size, _ := style.String("fontSize")
	assert.Equal(t, "12px", size)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"bad yaml", "port: [", "parse config"},
		{"bad port", "port: 70000", "out of range"},
		{"bad clients", "max_clients: 0", "max_clients"},
		{"unknown default", "defaults:\n  color: red\n", "invalid plot defaults color"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
