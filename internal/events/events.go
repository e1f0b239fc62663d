// Package events defines the canonical data model shared by every stage of
// the pipeline: detectors emit Events, the fusion engine emits FusedSignals,
// the alert engine emits Alerts. All three cross the bus in internal/bus.
package events

import "time"

// State is the health/confidence classification a detector attaches to each
// event it emits.
type State string

const (
	StateNormal    State = "NORMAL"
	StateWarning   State = "WARNING"
	StateAlert     State = "ALERT"
	StateUncertain State = "UNCERTAIN"
)

// Value is one feature reading: a detector's value map is keyed by feature
// name (e.g. "respiration_rate", "bed_occupied") to a Value.
type Value struct {
	Number *float64
	Bool   *bool
}

// NumberValue builds a numeric Value.
func NumberValue(v float64) Value { return Value{Number: &v} }

// BoolValue builds a boolean Value.
func BoolValue(v bool) Value { return Value{Bool: &v} }

// IsNull reports whether neither variant is set, i.e. the feature was not
// computed this tick (partial event under UNCERTAIN state).
func (v Value) IsNull() bool { return v.Number == nil && v.Bool == nil }

// Float returns the numeric value and whether it was present.
func (v Value) Float() (float64, bool) {
	if v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

// Truth returns the boolean value and whether it was present.
func (v Value) Truth() (bool, bool) {
	if v.Bool == nil {
		return false, false
	}
	return *v.Bool, true
}

// Event is the canonical unit produced by a detector on each processing
// tick. See SPEC_FULL.md §3 for the invariants: within one (Detector,
// SessionID), Sequence strictly increases and Timestamp is non-decreasing;
// 0<=Confidence<=1; State==Uncertain iff the detector lacks enough recent
// data to make a claim.
type Event struct {
	Detector   string
	Timestamp  time.Time
	Sequence   uint64
	SessionID  string
	State      State
	Confidence float64
	Value      map[string]Value
}

// Field looks up a feature by name, returning ok=false if absent or the
// event carries no such key (distinct from an explicit null under
// UNCERTAIN, which is Value{}).
func (e Event) Field(name string) (Value, bool) {
	v, ok := e.Value[name]
	return v, ok
}

// SignalValue is the latest reading of one (detector, field) pair, tracked
// by the fusion engine's latest-value table.
type SignalValue struct {
	Detector   string
	Field      string
	Value      Value
	Confidence float64
	Timestamp  time.Time
}

// Stale reports whether this reading is older than maxAge as of now.
func (s SignalValue) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}

// FusedSignal is a named logical channel produced by the fusion engine.
type FusedSignal struct {
	Name       string
	Value      Value
	Confidence float64
	Timestamp  time.Time
	Sources    []string
	Agreement  float64
	Degraded   bool
}

// ToEvent renders a channel update as an Event with detector id
// "fusion.<channel>", the shape the alert engine and any external bridge
// consume uniformly alongside raw detector events.
func (f FusedSignal) ToEvent() Event {
	state := StateNormal
	if f.Value.IsNull() {
		state = StateUncertain
	}
	return Event{
		Detector:   "fusion." + f.Name,
		Timestamp:  f.Timestamp,
		State:      state,
		Confidence: f.Confidence,
		Value:      map[string]Value{"value": f.Value},
	}
}

// Severity is an alert's or notification's urgency level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a fired or resolving rule instance.
type Alert struct {
	AlertID        string
	RuleName       string
	Level          Severity
	Source         string
	Message        string
	TriggeredAt    time.Time
	AcknowledgedAt *time.Time
	Resolved       bool
	ResolvedAt     *time.Time
	Values         map[string]Value // snapshot at trigger instant, for message rendering and audit
}

// PauseState is the orchestrator-owned suppression flag consulted by the
// notifier before dispatching to any external sink.
type PauseState struct {
	Paused     bool
	PauseUntil *time.Time
}

// Active reports whether pause is currently in effect as of now, returning
// false once PauseUntil has passed; it does not modify p.
func (p PauseState) Active(now time.Time) bool {
	if !p.Paused {
		return false
	}
	if p.PauseUntil == nil {
		return true
	}
	return now.Before(*p.PauseUntil)
}
