// Package config loads and validates the Nightwatch YAML configuration
// file described in SPEC_FULL.md §6, then applies NIGHTWATCH_* environment
// variable overrides on top — the same two-step "parse then LoadFromEnv"
// shape owl-common/config uses for every service in this lineage, adapted
// from env-only to YAML-plus-env-override because SPEC_FULL.md requires a
// YAML config file as the primary source.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RadarConfig configures the mmWave radar detector.
type RadarConfig struct {
	Enabled               bool    `yaml:"enabled"`
	Device                string  `yaml:"device"`
	BaudRate              int     `yaml:"baud_rate"`
	Model                 string  `yaml:"model"` // ld2450 | ld2410
	Transport             string  `yaml:"transport"` // direct | mqtt
	Sensitivity           float64 `yaml:"sensitivity"`
	UpdateRateHz          int     `yaml:"update_rate_hz"`
	RespirationThreshold  float64 `yaml:"respiration_threshold"`
	MovementThreshold     float64 `yaml:"movement_threshold"`
	DetectionDistanceMinM float64 `yaml:"detection_distance_min"`
	DetectionDistanceMaxM float64 `yaml:"detection_distance_max"`

	// Used only when Transport == "mqtt": a remote radar bridge publishes
	// raw frames to MQTTTopic instead of this process opening Device itself.
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
}

func (c *RadarConfig) applyDefaults() {
	if c.Device == "" {
		c.Device = "/dev/ttyAMA0"
	}
	if c.BaudRate == 0 {
		c.BaudRate = 256000
	}
	if c.Model == "" {
		c.Model = "ld2450"
	}
	if c.Transport == "" {
		c.Transport = "direct"
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = 0.8
	}
	if c.UpdateRateHz == 0 {
		c.UpdateRateHz = 10
	}
	if c.RespirationThreshold == 0 {
		c.RespirationThreshold = 0.3
	}
	if c.MovementThreshold == 0 {
		c.MovementThreshold = 0.5
	}
	if c.DetectionDistanceMaxM == 0 {
		c.DetectionDistanceMaxM = 3.0
	}
	if c.MQTTTopic == "" {
		c.MQTTTopic = "nightwatch/radar/frames"
	}
	if c.MQTTClientID == "" {
		c.MQTTClientID = "nightwatch-radar"
	}
}

func (c *RadarConfig) validate() []string {
	var errs []string
	if c.Model != "ld2450" && c.Model != "ld2410" {
		errs = append(errs, fmt.Sprintf("detectors.radar.model must be 'ld2450' or 'ld2410', got %q", c.Model))
	}
	if c.Transport != "direct" && c.Transport != "mqtt" {
		errs = append(errs, fmt.Sprintf("detectors.radar.transport must be 'direct' or 'mqtt', got %q", c.Transport))
	}
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		errs = append(errs, "detectors.radar.sensitivity must be in [0,1]")
	}
	if c.Transport == "mqtt" && c.MQTTBroker == "" {
		errs = append(errs, "detectors.radar.mqtt_broker is required when transport is 'mqtt'")
	}
	return errs
}

func (c *RadarConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_RADAR_ENABLED"); v != "" {
		c.Enabled = parseBool(v)
	}
	if v := os.Getenv("NIGHTWATCH_RADAR_DEVICE"); v != "" {
		c.Device = v
	}
	if v := os.Getenv("NIGHTWATCH_RADAR_SENSITIVITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Sensitivity = f
		}
	}
	if v := os.Getenv("NIGHTWATCH_RADAR_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
}

// AudioConfig configures the microphone detector.
type AudioConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Device             string  `yaml:"device"`
	SampleRate         int     `yaml:"sample_rate"`
	ChunkSize          int     `yaml:"chunk_size"`
	Channels           int     `yaml:"channels"`
	UpdateRateHz       float64 `yaml:"update_rate_hz"`
	SilenceThreshold   float64 `yaml:"silence_threshold"`
	SilenceMargin      float64 `yaml:"silence_margin"`
	BreathingThreshold float64 `yaml:"breathing_threshold"`
	BreathingFreqMinHz float64 `yaml:"breathing_freq_min_hz"`
	BreathingFreqMaxHz float64 `yaml:"breathing_freq_max_hz"`
}

func (c *AudioConfig) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1024
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.UpdateRateHz == 0 {
		c.UpdateRateHz = 10.0
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 0.005
	}
	if c.SilenceMargin == 0 {
		c.SilenceMargin = 2.0
	}
	if c.BreathingThreshold == 0 {
		c.BreathingThreshold = 0.02
	}
	if c.BreathingFreqMinHz == 0 {
		c.BreathingFreqMinHz = 200.0
	}
	if c.BreathingFreqMaxHz == 0 {
		c.BreathingFreqMaxHz = 800.0
	}
}

func (c *AudioConfig) validate() []string {
	var errs []string
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		errs = append(errs, "detectors.audio.sample_rate must be in [8000,48000]")
	}
	return errs
}

func (c *AudioConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_AUDIO_ENABLED"); v != "" {
		c.Enabled = parseBool(v)
	}
	if v := os.Getenv("NIGHTWATCH_AUDIO_DEVICE"); v != "" {
		c.Device = v
	}
}

// BCGConfig configures the under-mattress ballistocardiography sensor.
type BCGConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	SensorType               string  `yaml:"sensor_type"` // piezo | fsr
	ADCType                  string  `yaml:"adc_type"`     // mcp3008 | ads1115
	I2CAddress               int     `yaml:"i2c_address"`
	SPIBus                   int     `yaml:"spi_bus"`
	SPIDevice                int     `yaml:"spi_device"`
	ADCChannel               int     `yaml:"adc_channel"`
	SampleRate               int     `yaml:"sample_rate"`
	UpdateRateHz             float64 `yaml:"update_rate_hz"`
	FilterLowHz              float64 `yaml:"filter_low_hz"`
	FilterHighHz             float64 `yaml:"filter_high_hz"`
	PeakDetectionThreshold   float64 `yaml:"peak_detection_threshold"`
}

func (c *BCGConfig) applyDefaults() {
	if c.SensorType == "" {
		c.SensorType = "piezo"
	}
	if c.ADCType == "" {
		c.ADCType = "mcp3008"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 100
	}
	if c.UpdateRateHz == 0 {
		c.UpdateRateHz = 10.0
	}
	if c.FilterLowHz == 0 {
		c.FilterLowHz = 0.5
	}
	if c.FilterHighHz == 0 {
		c.FilterHighHz = 25.0
	}
	if c.PeakDetectionThreshold == 0 {
		c.PeakDetectionThreshold = 0.6
	}
}

func (c *BCGConfig) validate() []string { return nil }

func (c *BCGConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_BCG_ENABLED"); v != "" {
		c.Enabled = parseBool(v)
	}
}

// DetectorsConfig groups every sensor's configuration.
type DetectorsConfig struct {
	Radar RadarConfig `yaml:"radar"`
	Audio AudioConfig `yaml:"audio"`
	BCG   BCGConfig   `yaml:"bcg"`
}

// FusionRuleSource is one contributor to a fusion channel.
type FusionRuleSource struct {
	Detector string  `yaml:"detector"`
	Field    string  `yaml:"field"`
	Weight   float64 `yaml:"weight"`
}

// FusionRule configures how one channel is computed.
type FusionRule struct {
	Signal              string             `yaml:"signal"`
	Sources             []FusionRuleSource `yaml:"sources"`
	Strategy            string             `yaml:"strategy"` // weighted_average | best_confidence | voting | any | all | computed
	MinSources          int                `yaml:"min_sources"`
	AgreementThreshold  float64            `yaml:"agreement_threshold"`
	DisagreementLimit   float64            `yaml:"disagreement_limit"`
	MaxDeviation        float64            `yaml:"max_deviation"`
	Computed            string             `yaml:"computed"` // name of the closure, e.g. "apnea_risk"
}

// FusionConfig configures the fusion engine.
type FusionConfig struct {
	SignalMaxAgeSeconds     float64      `yaml:"signal_max_age_seconds"`
	CrossValidationEnabled  bool         `yaml:"cross_validation_enabled"`
	AgreementBonus          float64      `yaml:"agreement_bonus"`
	DisagreementPenalty     float64      `yaml:"disagreement_penalty"`
	Rules                   []FusionRule `yaml:"rules"`
}

func (c *FusionConfig) applyDefaults() {
	if c.SignalMaxAgeSeconds == 0 {
		c.SignalMaxAgeSeconds = 5.0
	}
	if c.AgreementBonus == 0 {
		c.AgreementBonus = 0.1
	}
	if c.DisagreementPenalty == 0 {
		c.DisagreementPenalty = 0.2
	}
	for i := range c.Rules {
		if c.Rules[i].MinSources == 0 {
			c.Rules[i].MinSources = 1
		}
		if c.Rules[i].AgreementThreshold == 0 {
			c.Rules[i].AgreementThreshold = 0.8
		}
		if c.Rules[i].DisagreementLimit == 0 {
			c.Rules[i].DisagreementLimit = 5.0
		}
		if c.Rules[i].MaxDeviation == 0 {
			c.Rules[i].MaxDeviation = 5.0
		}
		for j := range c.Rules[i].Sources {
			if c.Rules[i].Sources[j].Weight == 0 {
				c.Rules[i].Sources[j].Weight = 1.0
			}
		}
	}
}

func (c *FusionConfig) validate() []string {
	var errs []string
	validStrategies := map[string]bool{
		"weighted_average": true, "best_confidence": true,
		"voting": true, "any": true, "all": true, "computed": true,
	}
	for _, r := range c.Rules {
		if !validStrategies[r.Strategy] {
			errs = append(errs, fmt.Sprintf("fusion.rules[%s].strategy invalid: %q", r.Signal, r.Strategy))
		}
		if r.Strategy == "computed" && r.Computed == "" {
			errs = append(errs, fmt.Sprintf("fusion.rules[%s]: strategy=computed requires 'computed' name", r.Signal))
		}
	}
	return errs
}

// AlertRuleCondition is one predicate within a rule. Either Operator/Value
// or Expression is set; Expression is a Nightwatch enrichment (SPEC_FULL.md
// §11) evaluated via gopher-lua for predicates a single comparison cannot
// express.
type AlertRuleCondition struct {
	Source          string      `yaml:"source"` // "channel:<name>" or "detector:<name>"
	Field           string      `yaml:"field"`
	Operator        string      `yaml:"operator"` // <, <=, ==, !=, >=, >
	Value           interface{} `yaml:"value"`
	DurationSeconds float64     `yaml:"duration_seconds"`
	Expression      string      `yaml:"expression"`
}

// AlertRule configures one alert-engine predicate.
type AlertRule struct {
	Name              string                `yaml:"name"`
	Enabled           bool                  `yaml:"enabled"`
	Conditions        []AlertRuleCondition  `yaml:"conditions"`
	Combine           string                `yaml:"combine"` // all | any
	Severity          string                `yaml:"severity"` // warning | critical
	DurationSeconds   float64               `yaml:"duration_seconds"`
	CooldownSeconds   float64               `yaml:"cooldown_seconds"`
	ResolveHoldSeconds float64              `yaml:"resolve_hold_seconds"`
	Message           string                `yaml:"message"`
}

func (r *AlertRule) ApplyDefaults() {
	if r.Combine == "" {
		r.Combine = "all"
	}
	if r.Severity == "" {
		r.Severity = "critical"
	}
	if r.CooldownSeconds == 0 {
		r.CooldownSeconds = 30.0
	}
	if r.ResolveHoldSeconds == 0 {
		r.ResolveHoldSeconds = 10.0
	}
}

// AlertEngineConfig configures the alert engine as a whole.
type AlertEngineConfig struct {
	DetectorTimeoutSeconds     float64     `yaml:"detector_timeout_seconds"`
	HealthCheckIntervalSeconds float64     `yaml:"health_check_interval"`
	AcknowledgeTimeoutSeconds  float64     `yaml:"acknowledge_timeout_seconds"`
	MaxPauseMinutes            int         `yaml:"max_pause_minutes"`
	Rules                      []AlertRule `yaml:"rules"`
}

func (c *AlertEngineConfig) applyDefaults() {
	if c.DetectorTimeoutSeconds == 0 {
		c.DetectorTimeoutSeconds = 10.0
	}
	if c.HealthCheckIntervalSeconds == 0 {
		c.HealthCheckIntervalSeconds = 5.0
	}
	if c.AcknowledgeTimeoutSeconds == 0 {
		c.AcknowledgeTimeoutSeconds = 60.0
	}
	if c.MaxPauseMinutes == 0 {
		c.MaxPauseMinutes = 60
	}
	for i := range c.Rules {
		c.Rules[i].ApplyDefaults()
	}
}

func (c *AlertEngineConfig) validate() []string {
	var errs []string
	validOps := map[string]bool{"<": true, "<=": true, "==": true, "!=": true, ">=": true, ">": true}
	for _, r := range c.Rules {
		if r.Combine != "all" && r.Combine != "any" {
			errs = append(errs, fmt.Sprintf("alert_engine.rules[%s].combine must be 'all' or 'any'", r.Name))
		}
		if r.Severity != "warning" && r.Severity != "critical" && r.Severity != "info" {
			errs = append(errs, fmt.Sprintf("alert_engine.rules[%s].severity invalid: %q", r.Name, r.Severity))
		}
		for _, cond := range r.Conditions {
			if cond.Expression != "" {
				continue
			}
			if !validOps[cond.Operator] {
				errs = append(errs, fmt.Sprintf("alert_engine.rules[%s]: invalid operator %q", r.Name, cond.Operator))
			}
		}
	}
	return errs
}

// AudioNotifierConfig configures the local speaker/buzzer alarm.
type AudioNotifierConfig struct {
	Enabled                    bool    `yaml:"enabled"`
	OutputType                 string  `yaml:"output_type"` // speaker | buzzer | both
	SpeakerDevice              string  `yaml:"speaker_device"`
	BuzzerGPIOPin              int     `yaml:"buzzer_gpio_pin"`
	InitialVolume              int     `yaml:"initial_volume"`
	MaxVolume                  int     `yaml:"max_volume"`
	EscalationEnabled          bool    `yaml:"escalation_enabled"`
	EscalationIntervalSeconds  float64 `yaml:"escalation_interval_seconds"`
	MaxDurationSeconds         float64 `yaml:"max_duration_seconds"`
	SoundsDir                  string  `yaml:"sounds_dir"`
}

func (c *AudioNotifierConfig) applyDefaults() {
	if c.OutputType == "" {
		c.OutputType = "speaker"
	}
	if c.SpeakerDevice == "" {
		c.SpeakerDevice = "default"
	}
	if c.BuzzerGPIOPin == 0 {
		c.BuzzerGPIOPin = 18
	}
	if c.InitialVolume == 0 {
		c.InitialVolume = 60
	}
	if c.MaxVolume == 0 {
		c.MaxVolume = 100
	}
	if c.EscalationIntervalSeconds == 0 {
		c.EscalationIntervalSeconds = 15.0
	}
	if c.MaxDurationSeconds == 0 {
		c.MaxDurationSeconds = 120.0
	}
	if c.SoundsDir == "" {
		c.SoundsDir = "/usr/share/nightwatch/sounds"
	}
}

// PushNotifierConfig configures the pushover/ntfy/webhook push sink.
type PushNotifierConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Provider           string   `yaml:"provider"` // pushover | ntfy | webhook
	PushoverUserKey    string   `yaml:"pushover_user_key"`
	PushoverAPIToken   string   `yaml:"pushover_api_token"`
	PushoverURL        string   `yaml:"pushover_url"` // overridable for testing; defaults to the real API
	NtfyServer         string   `yaml:"ntfy_server"`
	NtfyTopic          string   `yaml:"ntfy_topic"`
	WebhookURL         string   `yaml:"webhook_url"`
	WebhookMethod      string   `yaml:"webhook_method"`
	AlertLevels        []string `yaml:"alert_levels"`
	RetryCount         int      `yaml:"retry_count"`
	RetryDelaySeconds  float64  `yaml:"retry_delay_seconds"`
}

func (c *PushNotifierConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "pushover"
	}
	if c.PushoverURL == "" {
		c.PushoverURL = "https://api.pushover.net/1/messages.json"
	}
	if c.NtfyServer == "" {
		c.NtfyServer = "https://ntfy.sh"
	}
	if c.WebhookMethod == "" {
		c.WebhookMethod = "POST"
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
}

func (c *PushNotifierConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_PUSH_PUSHOVER_USER_KEY"); v != "" {
		c.PushoverUserKey = v
	}
	if v := os.Getenv("NIGHTWATCH_PUSH_PUSHOVER_API_TOKEN"); v != "" {
		c.PushoverAPIToken = v
	}
	if v := os.Getenv("NIGHTWATCH_PUSH_NTFY_TOPIC"); v != "" {
		c.NtfyTopic = v
	}
}

// NotifiersConfig groups every notification sink's configuration.
type NotifiersConfig struct {
	Audio AudioNotifierConfig `yaml:"audio"`
	Push  PushNotifierConfig  `yaml:"push"`
}

// RedisConfig configures the optional bus bridge's Redis Stream mirror,
// following owl-common/config's RedisConfig shape.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

func (c *RedisConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Stream == "" {
		c.Stream = "nightwatch:bus"
	}
}

func (c *RedisConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_REDIS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("NIGHTWATCH_REDIS_PASSWORD"); v != "" {
		c.Password = v
	}
}

// PostgresConfig configures the optional calibration-history mirror,
// following owl-common/config's DatabaseConfig shape.
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

func (c *PostgresConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func (c *PostgresConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *PostgresConfig) loadFromEnv() {
	if v := os.Getenv("NIGHTWATCH_POSTGRES_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("NIGHTWATCH_POSTGRES_PASSWORD"); v != "" {
		c.Password = v
	}
}

// CalibrationStoreConfig selects where adaptive baselines are persisted.
type CalibrationStoreConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// WebSocketBridgeConfig configures the local diagnostic bus tail endpoint.
type WebSocketBridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func (c *WebSocketBridgeConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8787"
	}
}

// BusBridgeConfig groups the external event-bus emission sinks (SPEC_FULL.md §11).
type BusBridgeConfig struct {
	Redis     RedisConfig           `yaml:"redis"`
	WebSocket WebSocketBridgeConfig `yaml:"websocket"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	Name              string                 `yaml:"name"`
	LogLevel          string                 `yaml:"log_level"`
	LogFormat         string                 `yaml:"log_format"`
	DataDir           string                 `yaml:"data_dir"`
	CalibrationStore  CalibrationStoreConfig `yaml:"calibration_store"`
}

func (c *SystemConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "nightwatch"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/nightwatch"
	}
}

func (c *SystemConfig) validate() []string {
	valid := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !valid[c.LogLevel] {
		return []string{fmt.Sprintf("system.log_level invalid: %q", c.LogLevel)}
	}
	return nil
}

// Config is the top-level, fully-typed Nightwatch configuration.
type Config struct {
	System     SystemConfig    `yaml:"system"`
	Detectors  DetectorsConfig `yaml:"detectors"`
	Fusion     FusionConfig    `yaml:"fusion"`
	AlertEngine AlertEngineConfig `yaml:"alert_engine"`
	Notifiers  NotifiersConfig `yaml:"notifiers"`
	BusBridge  BusBridgeConfig `yaml:"bus_bridge"`
	MockSensors bool           `yaml:"mock_sensors"`
}

// ApplyDefaults fills every unset field with its documented default,
// mirroring the Pydantic field defaults the original configuration schema
// declares.
func (c *Config) ApplyDefaults() {
	c.System.applyDefaults()
	c.Detectors.Radar.applyDefaults()
	c.Detectors.Audio.applyDefaults()
	c.Detectors.BCG.applyDefaults()
	c.Fusion.applyDefaults()
	c.AlertEngine.applyDefaults()
	c.Notifiers.Audio.applyDefaults()
	c.Notifiers.Push.applyDefaults()
	c.BusBridge.Redis.applyDefaults()
	c.BusBridge.WebSocket.applyDefaults()
	c.System.CalibrationStore.Postgres.applyDefaults()
}

// LoadEnvOverrides applies NIGHTWATCH_* environment variables on top of an
// already-parsed config, the same override pass owl-common's per-struct
// LoadFromEnv methods perform for every service in this lineage.
func (c *Config) LoadEnvOverrides() {
	if v := os.Getenv("NIGHTWATCH_LOG_LEVEL"); v != "" {
		c.System.LogLevel = v
	}
	if v := os.Getenv("NIGHTWATCH_MOCK"); v != "" {
		c.MockSensors = parseBool(v)
	}
	c.Detectors.Radar.loadFromEnv()
	c.Detectors.Audio.loadFromEnv()
	c.Detectors.BCG.loadFromEnv()
	c.Notifiers.Push.loadFromEnv()
	c.BusBridge.Redis.loadFromEnv()
	c.System.CalibrationStore.Postgres.loadFromEnv()
}

// Validate runs every sub-config's structural checks and returns the
// combined list of problems, empty when the configuration is acceptable.
func (c *Config) Validate() []string {
	var errs []string
	errs = append(errs, c.System.validate()...)
	errs = append(errs, c.Detectors.Radar.validate()...)
	errs = append(errs, c.Detectors.Audio.validate()...)
	errs = append(errs, c.Detectors.BCG.validate()...)
	errs = append(errs, c.Fusion.validate()...)
	errs = append(errs, c.AlertEngine.validate()...)
	return errs
}

// DetectorTimeout returns the configured detector timeout as a Duration.
func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.AlertEngine.DetectorTimeoutSeconds * float64(time.Second))
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// substituteEnvVars implements the original config loader's ${VAR} /
// ${VAR:-default} pre-parse substitution pass (SPEC_FULL.md §12), applied
// to the raw YAML text before it is unmarshaled.
func substituteEnvVars(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if strings.Contains(match, ":-") {
			return groups[2]
		}
		return match
	})
}

func parseBool(v string) bool {
	switch v {
	case "true", "yes", "1", "True", "TRUE":
		return true
	default:
		return false
	}
}
