package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandStructure(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"run", "scan", "events", "config"} {
		assert.True(t, names[want], "missing %q subcommand", want)
	}
}

func TestRunCommandFlags(t *testing.T) {
	once := runCmd.Flags().Lookup("once")
	require.NotNil(t, once)
	assert.Equal(t, "false", once.DefValue)

	report := runCmd.Flags().Lookup("init-report")
	require.NotNil(t, report)
	assert.Equal(t, "false", report.DefValue)
}

func TestScanCommandFlags(t *testing.T) {
	strategy := scanCmd.Flags().Lookup("strategy")
	require.NotNil(t, strategy)
	assert.Equal(t, "", strategy.DefValue)
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-01")
	assert.Contains(t, rootCmd.Version, "1.2.3")
	assert.Contains(t, rootCmd.Version, "abc123")
}

func TestConfigSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range configCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["init"])
	assert.True(t, names["show"])
}
