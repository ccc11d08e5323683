package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "default text config",
			config: DefaultConfig(),
		},
		{
			name: "json format",
			config: Config{
				Level:  LevelDebug,
				Format: FormatJSON,
				Output: "stderr",
			},
		},
		{
			name: "unknown level falls back to info",
			config: Config{
				Level:  "chatty",
				Format: FormatText,
				Output: "stdout",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			// Exercise the logger; panics would fail the test.
			logger.Info("test message", "key", "value")
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lanwatch.log")

	logger, err := New(Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("written to file")
	assert.FileExists(t, path)
}

func TestFieldHelpers(t *testing.T) {
	logger := NewDefault()

	assert.NotNil(t, logger.WithComponent("scan"))
	assert.NotNil(t, logger.WithStrategy("arp-table"))
	assert.NotNil(t, logger.WithMAC("aa:bb:cc:dd:ee:ff"))
	assert.NotNil(t, logger.WithFields("a", 1, "b", 2))
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	replacement := NewDefault()
	SetDefault(replacement)
	assert.Same(t, replacement, Default())

	// Package-level helpers route through the default logger.
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}
