package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("INCUBATOR_DEBUG", "")

	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevel_DebugEnv(t *testing.T) {
	t.Setenv("DEBUG", "1")
	got, err := ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, got)
}

func TestNew_FanOut(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("INCUBATOR_DEBUG", "")

	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "incubator.log")

	logger, closer, err := New(Options{Level: "info", File: file, Service: "incubatord", Console: &console})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Heater", slog.Bool("on", true))
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "msg=Heater")
	assert.Contains(t, console.String(), "service=incubatord")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "Heater", rec["msg"])
	assert.Equal(t, true, rec["on"])
	assert.Equal(t, "incubatord", rec["service"])
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := New(Options{Console: &console})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())

	logger.Warn("Sensor")
	assert.Contains(t, console.String(), "level=WARN")
}

func TestNew_Errors(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("INCUBATOR_DEBUG", "")

	_, _, err := New(Options{Level: "chatty"})
	assert.Error(t, err)

	_, _, err = New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
