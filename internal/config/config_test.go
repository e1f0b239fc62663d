package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaultsFillsEveryDefault(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "nightwatch", cfg.System.Name)
	assert.Equal(t, "info", cfg.System.LogLevel)
	assert.Equal(t, "ld2450", cfg.Detectors.Radar.Model)
	assert.Equal(t, 256000, cfg.Detectors.Radar.BaudRate)
	assert.Equal(t, 16000, cfg.Detectors.Audio.SampleRate)
	assert.Equal(t, "piezo", cfg.Detectors.BCG.SensorType)
	assert.Equal(t, 5.0, cfg.Fusion.SignalMaxAgeSeconds)
	assert.Equal(t, 10.0, cfg.AlertEngine.DetectorTimeoutSeconds)
	assert.Equal(t, 60, cfg.AlertEngine.MaxPauseMinutes)
	assert.Equal(t, "speaker", cfg.Notifiers.Audio.OutputType)
	assert.Equal(t, "pushover", cfg.Notifiers.Push.Provider)
	assert.Equal(t, "localhost:6379", cfg.BusBridge.Redis.Addr)
	assert.Equal(t, "127.0.0.1:8787", cfg.BusBridge.WebSocket.Addr)
	assert.Equal(t, 5432, cfg.System.CalibrationStore.Postgres.Port)
}

func TestConfig_ApplyDefaultsDoesNotOverrideSetValues(t *testing.T) {
	cfg := Config{}
	cfg.Detectors.Radar.BaudRate = 115200
	cfg.ApplyDefaults()

	assert.Equal(t, 115200, cfg.Detectors.Radar.BaudRate)
}

func TestConfig_ApplyDefaultsFillsFusionRuleDefaults(t *testing.T) {
	cfg := Config{
		Fusion: FusionConfig{
			Rules: []FusionRule{
				{Signal: "resp_rate", Sources: []FusionRuleSource{{Detector: "radar", Field: "respiration_rate"}}},
			},
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 1, cfg.Fusion.Rules[0].MinSources)
	assert.Equal(t, 0.8, cfg.Fusion.Rules[0].AgreementThreshold)
	assert.Equal(t, 1.0, cfg.Fusion.Rules[0].Sources[0].Weight)
}

func TestConfig_ValidateRejectsBadRadarModel(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Detectors.Radar.Model = "ld9999"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0], "detectors.radar.model")
}

func TestConfig_ValidateRejectsMQTTTransportWithoutBroker(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Detectors.Radar.Transport = "mqtt"

	errs := cfg.Validate()
	found := false
	for _, e := range errs {
		if e == "detectors.radar.mqtt_broker is required when transport is 'mqtt'" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestConfig_ValidateRejectsBadFusionStrategy(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Fusion.Rules = []FusionRule{{Signal: "x", Strategy: "nonsense"}}

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestConfig_ValidateRejectsComputedRuleWithoutName(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Fusion.Rules = []FusionRule{{Signal: "x", Strategy: "computed"}}

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestConfig_ValidateRejectsBadAlertCombine(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.AlertEngine.Rules = []AlertRule{{Name: "r1", Combine: "xor", Severity: "critical"}}

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
}

func TestConfig_ValidateAcceptsExpressionConditionWithoutOperator(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	rule := AlertRule{Name: "r1", Combine: "all", Severity: "critical", Conditions: []AlertRuleCondition{
		{Source: "detector:bcg", Field: "heart_rate", Expression: "return value < 40"},
	}}
	cfg.AlertEngine.Rules = []AlertRule{rule}

	assert.Empty(t, cfg.Validate())
}

func TestConfig_DetectorTimeoutConvertsSecondsToDuration(t *testing.T) {
	var cfg Config
	cfg.AlertEngine.DetectorTimeoutSeconds = 12.5
	assert.Equal(t, 12500*time.Millisecond, cfg.DetectorTimeout())
}

func TestConfig_LoadEnvOverridesAppliesMockFlag(t *testing.T) {
	t.Setenv("NIGHTWATCH_MOCK", "true")
	var cfg Config
	cfg.ApplyDefaults()
	cfg.LoadEnvOverrides()
	assert.True(t, cfg.MockSensors)
}

func TestConfig_LoadEnvOverridesAppliesLogLevel(t *testing.T) {
	t.Setenv("NIGHTWATCH_LOG_LEVEL", "debug")
	var cfg Config
	cfg.ApplyDefaults()
	cfg.LoadEnvOverrides()
	assert.Equal(t, "debug", cfg.System.LogLevel)
}

func TestSubstituteEnvVars_ReplacesKnownVariable(t *testing.T) {
	t.Setenv("NW_TEST_VAR", "hello")
	out := substituteEnvVars("value: ${NW_TEST_VAR}")
	assert.Equal(t, "value: hello", out)
}

func TestSubstituteEnvVars_FallsBackToDefaultWhenUnset(t *testing.T) {
	out := substituteEnvVars("value: ${NW_TEST_UNSET_VAR:-fallback}")
	assert.Equal(t, "value: fallback", out)
}

func TestSubstituteEnvVars_LeavesUnmatchedPlaceholderWhenNoDefault(t *testing.T) {
	out := substituteEnvVars("value: ${NW_TEST_UNSET_NO_DEFAULT}")
	assert.Equal(t, "value: ${NW_TEST_UNSET_NO_DEFAULT}", out)
}

func TestParseBool_RecognizesTruthyStrings(t *testing.T) {
	for _, v := range []string{"true", "yes", "1", "True", "TRUE"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"false", "no", "0", ""} {
		assert.False(t, parseBool(v), v)
	}
}
