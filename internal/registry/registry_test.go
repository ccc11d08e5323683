package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
)

func testConfig() config.DevicesConfig {
	return config.DevicesConfig{
		Mapping: map[string]string{
			"AA:BB:CC:DD:EE:FF": "iPhone",
			"11-22-33-44-55-66": "MacBook",
		},
		Ignore: []string{"DE:AD:BE:EF:00:01"},
		Levels: map[string]string{
			"aa:bb:cc:dd:ee:ff": "silent",
		},
	}
}

func TestClassifyMapped(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	// Config keys are canonicalized regardless of their source format.
	policy := r.Classify("aa:bb:cc:dd:ee:ff")
	assert.Equal(t, "iPhone", policy.DisplayName)
	assert.Equal(t, device.LevelSilent, policy.Level)
	assert.False(t, policy.Ignored)

	policy = r.Classify("11:22:33:44:55:66")
	assert.Equal(t, "MacBook", policy.DisplayName)
	assert.Equal(t, device.LevelNormal, policy.Level)
}

func TestClassifyUnmapped(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	policy := r.Classify("00:00:00:00:00:01")
	assert.Equal(t, "00:00:00:00:00:01", policy.DisplayName)
	assert.Equal(t, device.LevelNormal, policy.Level)
	assert.False(t, policy.Ignored)
}

func TestClassifyIgnored(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	policy := r.Classify("de:ad:be:ef:00:01")
	assert.True(t, policy.Ignored)
	assert.True(t, r.Ignored("de:ad:be:ef:00:01"))
	assert.False(t, r.Ignored("aa:bb:cc:dd:ee:ff"))
}

func TestClassifyIdempotent(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	first := r.Classify("aa:bb:cc:dd:ee:ff")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Classify("aa:bb:cc:dd:ee:ff"))
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DevicesConfig
	}{
		{
			name: "bad mapping MAC",
			cfg:  config.DevicesConfig{Mapping: map[string]string{"junk": "x"}},
		},
		{
			name: "bad ignore MAC",
			cfg:  config.DevicesConfig{Ignore: []string{"junk"}},
		},
		{
			name: "bad level",
			cfg:  config.DevicesConfig{Levels: map[string]string{"aa:bb:cc:dd:ee:ff": "loud"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestReload(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	err = r.Reload(config.DevicesConfig{
		Mapping: map[string]string{"aa:bb:cc:dd:ee:ff": "renamed"},
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", r.Classify("aa:bb:cc:dd:ee:ff").DisplayName)
	// Old ignore list is gone with the old snapshot.
	assert.False(t, r.Ignored("de:ad:be:ef:00:01"))
}

func TestReloadKeepsOldSnapshotOnError(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	err = r.Reload(config.DevicesConfig{Mapping: map[string]string{"junk": "x"}})
	require.Error(t, err)

	// Prior snapshot still answers.
	assert.Equal(t, "iPhone", r.Classify("aa:bb:cc:dd:ee:ff").DisplayName)
	assert.True(t, r.Ignored("de:ad:be:ef:00:01"))
}

func TestCounts(t *testing.T) {
	r, err := New(testConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, r.Size())
	assert.Equal(t, 1, r.IgnoredCount())
	assert.True(t, r.Named("aa:bb:cc:dd:ee:ff"))
	assert.False(t, r.Named("00:00:00:00:00:01"))
}
