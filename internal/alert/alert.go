// Package alert implements the alert engine: per-rule state machines
// (idle -> pending -> firing -> resolving -> idle) evaluated against the
// fusion engine's latest channel values and raw detector events, emitting
// Alerts onto the bus for the notifier to consume. Grounded on
// original_source/core/alert_engine.py and SPEC_FULL.md §4.4.
package alert

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

type phase int

const (
	phaseIdle phase = iota
	phasePending
	phaseFiring
	phaseResolving
)

// ruleState is the per-rule state machine instance.
type ruleState struct {
	rule config.AlertRule

	phase          phase
	conditionSince time.Time // when the condition set first became continuously true
	lastFireAt     time.Time
	resolvingSince time.Time
	current        *events.Alert

	// conditionStart tracks, per condition index, when that individual
	// condition most recently became true, so a per-condition
	// DurationSeconds dwell requirement can be enforced independently of
	// the rule-level conditionSince above.
	conditionStart map[int]time.Time
}

// Engine owns one ruleState per configured alert rule plus the latest-value
// table it evaluates conditions against.
type Engine struct {
	bus   *bus.Bus
	rules []*ruleState

	table map[string]events.SignalValue
}

// New builds an alert engine from configuration.
func New(b *bus.Bus, cfg config.AlertEngineConfig) *Engine {
	e := &Engine{bus: b, table: make(map[string]events.SignalValue)}
	for _, r := range cfg.Rules {
		if !r.Enabled {
			continue
		}
		e.rules = append(e.rules, &ruleState{rule: r})
	}
	return e
}

func tableKey(source, field string) string { return source + "." + field }

// Ingest records one Event's fields into the latest-value table, keyed the
// same way whether it came from a raw detector or a fusion channel (the
// fusion engine republishes as "fusion.<channel>" detector ids, so a rule's
// source of "channel:respiration" resolves to "fusion.respiration").
func (e *Engine) Ingest(ev events.Event) {
	source := ev.Detector
	for field, v := range ev.Value {
		e.table[tableKey(source, field)] = events.SignalValue{
			Detector:   source,
			Field:      field,
			Value:      v,
			Confidence: ev.Confidence,
			Timestamp:  ev.Timestamp,
		}
	}
}

func resolveSource(source string) string {
	if strings.HasPrefix(source, "channel:") {
		return "fusion." + strings.TrimPrefix(source, "channel:")
	}
	return strings.TrimPrefix(source, "detector:")
}

// Evaluate advances every rule's state machine one tick and returns any
// Alert transitions (fired or resolved) that occurred, also publishing them
// onto bus.TopicAlerts.
func (e *Engine) Evaluate(now time.Time) []events.Alert {
	var out []events.Alert
	for _, rs := range e.rules {
		if alert, changed := e.step(rs, now); changed {
			out = append(out, alert)
			e.bus.Publish(bus.TopicAlerts, "alert_engine", alert)
		}
	}
	return out
}

func (e *Engine) step(rs *ruleState, now time.Time) (events.Alert, bool) {
	satisfied := e.conditionsSatisfied(rs, now)

	switch rs.phase {
	case phaseIdle:
		if !satisfied {
			return events.Alert{}, false
		}
		rs.phase = phasePending
		rs.conditionSince = now
		return events.Alert{}, false

	case phasePending:
		if !satisfied {
			rs.phase = phaseIdle
			return events.Alert{}, false
		}
		if now.Sub(rs.conditionSince) < durationOf(rs.rule.DurationSeconds) {
			return events.Alert{}, false
		}
		if !rs.lastFireAt.IsZero() && now.Sub(rs.lastFireAt) < durationOf(rs.rule.CooldownSeconds) {
			// Cooldown still active: stay pending so it fires the instant it
			// lifts, rather than needing DurationSeconds to re-accumulate.
			return events.Alert{}, false
		}
		rs.phase = phaseFiring
		rs.lastFireAt = now
		alert := e.buildAlert(rs, now)
		rs.current = &alert
		return alert, true

	case phaseFiring:
		if satisfied {
			return events.Alert{}, false
		}
		rs.phase = phaseResolving
		rs.resolvingSince = now
		return events.Alert{}, false

	case phaseResolving:
		if satisfied {
			rs.phase = phaseFiring
			return events.Alert{}, false
		}
		if now.Sub(rs.resolvingSince) < durationOf(rs.rule.ResolveHoldSeconds) {
			return events.Alert{}, false
		}
		rs.phase = phaseIdle
		if rs.current == nil {
			return events.Alert{}, false
		}
		resolved := *rs.current
		resolved.Resolved = true
		t := now
		resolved.ResolvedAt = &t
		rs.current = nil
		return resolved, true
	}

	return events.Alert{}, false
}

func durationOf(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func (e *Engine) conditionsSatisfied(rs *ruleState, now time.Time) bool {
	rule := rs.rule
	if len(rule.Conditions) == 0 {
		return false
	}
	results := make([]bool, len(rule.Conditions))
	for i, cond := range rule.Conditions {
		results[i] = e.evalCondition(rs, i, cond, now)
	}
	if rule.Combine == "any" {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// evalCondition matches condition i against the latest-value table and, when
// the condition carries its own DurationSeconds, requires it to have stayed
// continuously true for that long before counting as satisfied. This is
// distinct from the rule-level DurationSeconds handled in step(): a
// condition's own timer runs from rs.conditionStart[i], reset the instant
// the raw match goes false. Grounded on
// original_source/core/engine.py's per-condition condition_start_times.
func (e *Engine) evalCondition(rs *ruleState, i int, cond config.AlertRuleCondition, now time.Time) bool {
	sv, ok := e.table[tableKey(resolveSource(cond.Source), cond.Field)]
	if !ok {
		delete(rs.conditionStart, i)
		return false
	}

	result := matchCondition(cond, sv)

	if cond.DurationSeconds <= 0 {
		return result
	}
	if !result {
		delete(rs.conditionStart, i)
		return false
	}
	start, started := rs.conditionStart[i]
	if !started {
		start = now
		if rs.conditionStart == nil {
			rs.conditionStart = make(map[int]time.Time)
		}
		rs.conditionStart[i] = start
	}
	return now.Sub(start) >= durationOf(cond.DurationSeconds)
}

// matchCondition performs the raw (duration-agnostic) comparison for one
// condition against its resolved reading.
func matchCondition(cond config.AlertRuleCondition, sv events.SignalValue) bool {
	if cond.Expression != "" {
		return evalExpression(cond.Expression, sv)
	}

	f, isNumber := sv.Value.Float()
	if isNumber {
		target, ok := toFloat(cond.Value)
		if !ok {
			return false
		}
		return compareFloat(f, cond.Operator, target)
	}

	b, isBool := sv.Value.Truth()
	if isBool {
		target, ok := cond.Value.(bool)
		if !ok {
			return false
		}
		switch cond.Operator {
		case "==":
			return b == target
		case "!=":
			return b != target
		}
	}
	return false
}

func compareFloat(v float64, op string, target float64) bool {
	switch op {
	case "<":
		return v < target
	case "<=":
		return v <= target
	case "==":
		return v == target
	case "!=":
		return v != target
	case ">=":
		return v >= target
	case ">":
		return v > target
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// evalExpression evaluates a Lua predicate against a single condition's
// resolved SignalValue, exposed to the script as global `value`
// (number or boolean) and `confidence`. Grounded on SPEC_FULL.md §11's
// gopher-lua scripted-condition wiring, for predicates a single
// operator/value comparison cannot express (e.g. rate-of-change checks).
func evalExpression(expr string, sv events.SignalValue) bool {
	L := lua.NewState()
	defer L.Close()

	if f, ok := sv.Value.Float(); ok {
		L.SetGlobal("value", lua.LNumber(f))
	} else if b, ok := sv.Value.Truth(); ok {
		L.SetGlobal("value", lua.LBool(b))
	} else {
		L.SetGlobal("value", lua.LNil)
	}
	L.SetGlobal("confidence", lua.LNumber(sv.Confidence))

	if err := L.DoString(expr); err != nil {
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}

// Acknowledge marks the alert identified by alertID acknowledged,
// idempotently (a second call is a no-op rather than an error).
func (e *Engine) Acknowledge(alertID string, now time.Time) bool {
	for _, rs := range e.rules {
		if rs.current == nil || rs.current.AlertID != alertID {
			continue
		}
		if rs.current.AcknowledgedAt == nil {
			t := now
			rs.current.AcknowledgedAt = &t
		}
		return true
	}
	return false
}

// Resolve force-resolves the alert identified by alertID immediately,
// publishing the resolved transition without waiting out ResolveHoldSeconds.
// This is the operator override path alongside the engine's own automatic
// resolution once a rule's conditions clear; idempotent, since a second call
// finds no current alert for that id and is a no-op.
func (e *Engine) Resolve(alertID string, now time.Time) (events.Alert, bool) {
	for _, rs := range e.rules {
		if rs.current == nil || rs.current.AlertID != alertID {
			continue
		}
		resolved := *rs.current
		resolved.Resolved = true
		t := now
		resolved.ResolvedAt = &t
		rs.current = nil
		rs.phase = phaseIdle
		e.bus.Publish(bus.TopicAlerts, "alert_engine", resolved)
		return resolved, true
	}
	return events.Alert{}, false
}

// buildAlert constructs the fired Alert instance, hashing a stable AlertID
// from rule name and fire time and rendering rule.Message as a template
// against the current value snapshot ("{{field}}" placeholders).
func (e *Engine) buildAlert(rs *ruleState, now time.Time) events.Alert {
	snapshot := make(map[string]events.Value)
	for _, cond := range rs.rule.Conditions {
		key := tableKey(resolveSource(cond.Source), cond.Field)
		if sv, ok := e.table[key]; ok {
			snapshot[cond.Field] = sv.Value
		}
	}

	hash := sha1.Sum([]byte(fmt.Sprintf("%s|%d", rs.rule.Name, now.UnixNano())))
	id := hex.EncodeToString(hash[:8])

	return events.Alert{
		AlertID:     id,
		RuleName:    rs.rule.Name,
		Level:       events.Severity(rs.rule.Severity),
		Source:      rs.rule.Name,
		Message:     renderMessage(rs.rule.Message, snapshot),
		TriggeredAt: now,
		Values:      snapshot,
	}
}

func renderMessage(template string, values map[string]events.Value) string {
	if template == "" {
		return "alert condition met"
	}
	msg := template
	for field, v := range values {
		placeholder := "{{" + field + "}}"
		if !strings.Contains(msg, placeholder) {
			continue
		}
		var rendered string
		if f, ok := v.Float(); ok {
			rendered = fmt.Sprintf("%.1f", f)
		} else if b, ok := v.Truth(); ok {
			rendered = fmt.Sprintf("%v", b)
		}
		msg = strings.ReplaceAll(msg, placeholder, rendered)
	}
	return msg
}
