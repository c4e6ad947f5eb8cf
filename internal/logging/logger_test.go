package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	logger.Warn().Int("account_id", 3).Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")
	require.Contains(t, out, `"account_id":3`)
}

func TestNewDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDisabled, Format: "json", Output: &buf})
	logger.Error().Msg("nothing")
	require.Empty(t, buf.String())
}

func TestOpenFileRotatesLargeLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "log.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", maxLogSize)), 0o644))
	require.NoError(t, os.WriteFile(path+".1", []byte("older"), 0o644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.Len(t, rotated, maxLogSize)

	older, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	require.Equal(t, "older", string(older))
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "log.txt")
	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)
}
