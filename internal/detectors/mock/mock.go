// Package mock implements a deterministic synthetic sensor for
// `run --mock-sensors` and the `test-alert` CLI path, per SPEC_FULL.md §12.
// It satisfies detectors.Driver and detectors.Processor directly (no
// separate wire frame), since there is no real protocol to decode.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Anomaly describes an injected fault window.
type Anomaly struct {
	Kind     string // "apnea", "bradycardia", "seizure"
	Until    time.Time
}

// Source is a deterministic synthetic vitals generator, shared by the
// driver and processor halves below (there is nothing to actually read
// off the wire, so both roles collapse onto the same struct).
type Source struct {
	mu      sync.Mutex
	start   time.Time
	anomaly *Anomaly

	baseRespirationRate float64
	baseHeartRate       float64
}

// New builds a mock source with SPEC_FULL.md §12's defaults.
func New() *Source {
	return &Source{
		baseRespirationRate: 14.0,
		baseHeartRate:       70.0,
	}
}

// InjectAnomaly arms a synthetic anomaly for the given duration, driven by
// the orchestrator's control-inbox `inject_anomaly` message or the
// `test-alert` CLI subcommand.
func (s *Source) InjectAnomaly(kind string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomaly = &Anomaly{Kind: kind, Until: time.Now().Add(duration)}
}

func (s *Source) currentAnomaly(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anomaly == nil || now.After(s.anomaly.Until) {
		return ""
	}
	return s.anomaly.Kind
}

// Connect/Disconnect/Read/Calibrate implement detectors.Driver trivially:
// the mock never fails and never blocks.
func (s *Source) Connect(ctx context.Context) error {
	s.start = time.Now()
	return nil
}

func (s *Source) Disconnect(ctx context.Context) error { return nil }

func (s *Source) Read(ctx context.Context) (detectors.Frame, error) {
	return time.Now(), nil
}

func (s *Source) Calibrate(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"baseline_respiration": s.baseRespirationRate, "baseline_heart_rate": s.baseHeartRate}, nil
}

// Process implements detectors.Processor, synthesizing respiration and
// heart-rate signals with a small sinusoidal wobble plus whatever anomaly
// is currently armed.
func (s *Source) Process(frame detectors.Frame, now time.Time) (map[string]events.Value, events.State, float64, bool) {
	t := now.Sub(s.start).Seconds()
	respRate := s.baseRespirationRate + 0.5*math.Sin(t/20)
	hr := s.baseHeartRate + 2*math.Sin(t/13)
	state := events.StateNormal
	confidence := 0.95

	switch s.currentAnomaly(now) {
	case "apnea":
		respRate = 0
		state = events.StateAlert
	case "bradycardia":
		hr = 35
		state = events.StateAlert
	case "seizure":
		respRate = s.baseRespirationRate * 2.5
		hr = s.baseHeartRate * 1.8
		state = events.StateAlert
	}

	return map[string]events.Value{
		"presence":         events.BoolValue(true),
		"respiration_rate": events.NumberValue(respRate),
		"heart_rate":       events.NumberValue(hr),
	}, state, confidence, true
}
