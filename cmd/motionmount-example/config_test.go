package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motionmount.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs([]string{"-host", "10.0.0.5"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 23, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Interactive)
}

func TestParseArgsConfigFile(t *testing.T) {
	path := writeConfig(t, `
host: mm-living.local.
port: 2323
secret: hunter2
connect_timeout: 3s
request_timeout: 750ms
max_preset: 4
log_level: debug
reconnect: true
`)

	cfg, err := parseArgs([]string{"-config", path}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "mm-living.local.", cfg.Host)
	assert.Equal(t, 2323, cfg.Port)
	assert.Equal(t, "hunter2", cfg.Secret)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxPreset)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Reconnect)
}

func TestParseArgsFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "host: from-file\nport: 2323\nlog_level: debug\n")

	cfg, err := parseArgs([]string{"-config", path, "-port", "23", "-log-level", "warn"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Host)
	assert.Equal(t, 23, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no target", nil},
		{"bad port", []string{"-host", "h", "-port", "0"}},
		{"bad log level", []string{"-simulate", "-log-level", "loud"}},
		{"missing file", []string{"-config", "/does/not/exist.yaml"}},
		{"unknown flag", []string{"-bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestParseArgsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "host: [unterminated\n")

	_, err := parseArgs([]string{"-config", path}, io.Discard)
	assert.ErrorContains(t, err, "parse config")
}

func TestParseArgsTargetless(t *testing.T) {
	for _, args := range [][]string{{"-discover"}, {"-simulate"}} {
		_, err := parseArgs(args, io.Discard)
		assert.NoError(t, err, "%v", args)
	}
}
