package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nightwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesYAMLAndAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
system:
  name: bedroom-1
detectors:
  radar:
    enabled: true
    baud_rate: 115200
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bedroom-1", cfg.System.Name)
	assert.True(t, cfg.Detectors.Radar.Enabled)
	assert.Equal(t, 115200, cfg.Detectors.Radar.BaudRate)
	assert.Equal(t, "ld2450", cfg.Detectors.Radar.Model) // filled by ApplyDefaults
}

func TestLoad_SubstitutesEnvVarsBeforeParsing(t *testing.T) {
	t.Setenv("NW_TEST_DEVICE", "/dev/ttyUSB0")
	path := writeConfigFile(t, `
detectors:
  radar:
    device: ${NW_TEST_DEVICE}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Detectors.Radar.Device)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAMLReturnsError(t *testing.T) {
	path := writeConfigFile(t, "detectors: [this is not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault_ReturnsFullyDefaultedConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "nightwatch", cfg.System.Name)
	assert.Equal(t, "ld2450", cfg.Detectors.Radar.Model)
}
