package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

func silenceRule() config.AlertRule {
	rule := config.AlertRule{
		Name:               "apnea_suspected",
		Enabled:            true,
		Combine:            "all",
		Severity:           "critical",
		DurationSeconds:    2.0,
		CooldownSeconds:    5.0,
		ResolveHoldSeconds: 1.0,
		Message:            "silence for {{silence_duration_s}}s",
		Conditions: []config.AlertRuleCondition{
			{Source: "detector:audio", Field: "silence_duration_s", Operator: ">=", Value: 10.0},
		},
	}
	rule.ApplyDefaults()
	return rule
}

func newEngine(rules ...config.AlertRule) *Engine {
	return New(bus.New(), config.AlertEngineConfig{Rules: rules})
}

func ingest(e *Engine, detector, field string, value events.Value, ts time.Time) {
	e.Ingest(events.Event{
		Detector:  detector,
		Timestamp: ts,
		Value:     map[string]events.Value{field: value},
	})
}

func TestAlertEngine_FullLifecycle(t *testing.T) {
	e := newEngine(silenceRule())
	now := time.Now()

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	alerts := e.Evaluate(now)
	assert.Empty(t, alerts) // idle -> pending, not yet fired

	now = now.Add(3 * time.Second) // past DurationSeconds
	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	alerts = e.Evaluate(now)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Resolved)
	assert.Equal(t, "apnea_suspected", alerts[0].RuleName)

	// Condition still true: stays firing, no repeat event.
	now = now.Add(time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now))

	// Condition clears: firing -> resolving.
	now = now.Add(time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	assert.Empty(t, e.Evaluate(now))

	// Still within resolve-hold: not yet resolved.
	now = now.Add(200 * time.Millisecond)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	assert.Empty(t, e.Evaluate(now))

	// Past resolve-hold: resolves.
	now = now.Add(2 * time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	resolved := e.Evaluate(now)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Resolved)
	assert.NotNil(t, resolved[0].ResolvedAt)
}

func TestAlertEngine_ResolvingReturnsToFiringIfConditionReturns(t *testing.T) {
	e := newEngine(silenceRule())
	now := time.Now()

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	e.Evaluate(now)
	now = now.Add(3 * time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	require.Len(t, e.Evaluate(now), 1)

	now = now.Add(time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	e.Evaluate(now) // firing -> resolving

	now = now.Add(500 * time.Millisecond)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // resolving -> firing again, no new event
}

func TestAlertEngine_CooldownDelaysRefire(t *testing.T) {
	rule := silenceRule()
	rule.DurationSeconds = 0
	rule.CooldownSeconds = 30
	rule.ResolveHoldSeconds = 0
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	require.Len(t, e.Evaluate(now), 1) // pending -> firing

	now = now.Add(time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	assert.Empty(t, e.Evaluate(now)) // firing -> resolving

	ingest(e, "audio", "silence_duration_s", events.NumberValue(0), now)
	require.Len(t, e.Evaluate(now), 1) // resolving -> resolved

	now = now.Add(time.Second)
	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending again, cooldown irrelevant here

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // cooldown still active since last fire
}

func TestAlertEngine_AnyCombineFiresOnSingleCondition(t *testing.T) {
	rule := config.AlertRule{
		Name:            "either",
		Enabled:         true,
		Combine:         "any",
		DurationSeconds: 0,
		Conditions: []config.AlertRuleCondition{
			{Source: "detector:audio", Field: "vocalization", Operator: "==", Value: true},
			{Source: "detector:bcg", Field: "movement_detected", Operator: "==", Value: true},
		},
	}
	rule.ApplyDefaults()
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "audio", "vocalization", events.BoolValue(true), now)
	ingest(e, "bcg", "movement_detected", events.BoolValue(false), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending

	ingest(e, "audio", "vocalization", events.BoolValue(true), now)
	ingest(e, "bcg", "movement_detected", events.BoolValue(false), now)
	require.Len(t, e.Evaluate(now), 1) // pending -> firing
}

func TestAlertEngine_ExpressionCondition(t *testing.T) {
	rule := config.AlertRule{
		Name:            "scripted",
		Enabled:         true,
		Combine:         "all",
		DurationSeconds: 0,
		Conditions: []config.AlertRuleCondition{
			{Source: "detector:bcg", Field: "heart_rate", Expression: "return value < 40"},
		},
	}
	rule.ApplyDefaults()
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "bcg", "heart_rate", events.NumberValue(35), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending

	ingest(e, "bcg", "heart_rate", events.NumberValue(35), now)
	require.Len(t, e.Evaluate(now), 1) // pending -> firing
}

func TestAlertEngine_AcknowledgeIsIdempotent(t *testing.T) {
	rule := silenceRule()
	rule.DurationSeconds = 0
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	fired := e.Evaluate(now) // pending -> firing
	require.Len(t, fired, 1)

	assert.True(t, e.Acknowledge(fired[0].AlertID, now))
	assert.True(t, e.Acknowledge(fired[0].AlertID, now.Add(time.Second)))
}

func TestAlertEngine_AcknowledgeUnknownAlertIDReturnsFalse(t *testing.T) {
	e := newEngine(silenceRule())
	assert.False(t, e.Acknowledge("no_such_alert", time.Now()))
}

func TestAlertEngine_ResolveForcesImmediateResolutionAndIsIdempotent(t *testing.T) {
	rule := silenceRule()
	rule.DurationSeconds = 0
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	assert.Empty(t, e.Evaluate(now)) // idle -> pending

	ingest(e, "audio", "silence_duration_s", events.NumberValue(12), now)
	fired := e.Evaluate(now) // pending -> firing
	require.Len(t, fired, 1)

	resolved, ok := e.Resolve(fired[0].AlertID, now.Add(time.Second))
	require.True(t, ok)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedAt)

	_, ok = e.Resolve(fired[0].AlertID, now.Add(2*time.Second))
	assert.False(t, ok, "resolving an already-resolved alert id is a no-op")
}

func TestAlertEngine_ResolveUnknownAlertIDReturnsFalse(t *testing.T) {
	e := newEngine(silenceRule())
	_, ok := e.Resolve("no_such_alert", time.Now())
	assert.False(t, ok)
}

func TestAlertEngine_PerConditionDurationRequiresContinuousDwell(t *testing.T) {
	rule := config.AlertRule{
		Name:            "sustained_high_heart_rate",
		Enabled:         true,
		Combine:         "all",
		Severity:        "warning",
		DurationSeconds: 0,
		Conditions: []config.AlertRuleCondition{
			{Source: "detector:bcg", Field: "heart_rate", Operator: ">=", Value: 120.0, DurationSeconds: 5.0},
		},
	}
	rule.ApplyDefaults()
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "bcg", "heart_rate", events.NumberValue(130), now)
	assert.Empty(t, e.Evaluate(now), "condition just became true, dwell not yet elapsed")

	assert.Empty(t, e.Evaluate(now.Add(3*time.Second)), "3s < 5s required dwell")

	assert.Empty(t, e.Evaluate(now.Add(6*time.Second)), "6s >= 5s required dwell: idle -> pending")
	fired := e.Evaluate(now.Add(6 * time.Second))
	require.Len(t, fired, 1, "6s >= 5s required dwell")
}

func TestAlertEngine_PerConditionDurationResetsWhenConditionGoesFalse(t *testing.T) {
	rule := config.AlertRule{
		Name:            "sustained_high_heart_rate",
		Enabled:         true,
		Combine:         "all",
		Severity:        "warning",
		DurationSeconds: 0,
		Conditions: []config.AlertRuleCondition{
			{Source: "detector:bcg", Field: "heart_rate", Operator: ">=", Value: 120.0, DurationSeconds: 5.0},
		},
	}
	rule.ApplyDefaults()
	e := newEngine(rule)
	now := time.Now()

	ingest(e, "bcg", "heart_rate", events.NumberValue(130), now)
	assert.Empty(t, e.Evaluate(now))

	ingest(e, "bcg", "heart_rate", events.NumberValue(80), now.Add(3*time.Second))
	assert.Empty(t, e.Evaluate(now.Add(3*time.Second)), "condition dropped below threshold, dwell resets")

	ingest(e, "bcg", "heart_rate", events.NumberValue(130), now.Add(4*time.Second))
	assert.Empty(t, e.Evaluate(now.Add(6*time.Second)), "dwell restarts at this evaluation, 0s of 5s elapsed")
}

func TestAlertEngine_DisabledRuleNeverFires(t *testing.T) {
	rule := silenceRule()
	rule.Enabled = false
	e := newEngine(rule)
	now := time.Now()
	ingest(e, "audio", "silence_duration_s", events.NumberValue(999), now)
	assert.Empty(t, e.Evaluate(now))
}
