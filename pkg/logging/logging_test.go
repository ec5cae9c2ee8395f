// pkg/logging/logging_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Temp filesystem
// PURPOSE: Test verbosity mapping, env override and log file placement

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantLevel zerolog.Level
	}{
		{"default warn level", 0, zerolog.WarnLevel},
		{"info level", 1, zerolog.InfoLevel},
		{"debug level", 2, zerolog.DebugLevel},
		{"trace level", 3, zerolog.TraceLevel},
		{"high verbosity defaults to trace", 5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			t.Setenv("XDG_STATE_HOME", tempDir)
			t.Setenv(EnvLogLevel, "")

			SetupLogger(tt.verbosity)

			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
			_, err := os.Stat(filepath.Join(tempDir, "ozy", "ozy.log"))
			assert.NoError(t, err)
		})
	}
}

func TestLevelForEnvOverride(t *testing.T) {
	assert.Equal(t, zerolog.ErrorLevel, levelFor(3, "error"))
	assert.Equal(t, zerolog.DebugLevel, levelFor(0, "DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, levelFor(1, "not-a-level"))
	assert.Equal(t, zerolog.WarnLevel, levelFor(0, ""))
}

func TestGetLogFilePath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/custom/state")
	assert.Equal(t, "/custom/state/ozy/ozy.log", getLogFilePath())
}

func TestGetLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	log.Logger = zerolog.New(&buf)

	logger := GetLogger("cache")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"cache"`)
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	logger := zerolog.New(&buf)

	done := LogOperationStart(logger, "install")
	done()

	out := buf.String()
	assert.Contains(t, out, "Operation started")
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "duration")
}

func TestLogCommand(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	logger := zerolog.New(&buf)

	LogCommand(logger, "/bin/bash", []string{"installer.sh", "--prefix"})

	out := buf.String()
	require.Contains(t, out, "/bin/bash")
	assert.Contains(t, out, "installer.sh")
}
