package radar

import (
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Processor implements detectors.Processor for the LD2450, wiring the
// respiration, heart-rate, movement, and presence extractors together over
// the primary (first reported) target.
type Processor struct {
	respiration *RespirationExtractor
	heartRate   *HeartRateEstimator
	movement    *MovementDetector
	presence    PresenceTracker

	minRangeMM float64
	maxRangeMM float64
}

// NewProcessor builds a radar processor. minRangeM/maxRangeM come from
// RadarConfig.DetectionDistanceMinM/MaxM and gate which targets count as
// in-bed rather than passers-by.
func NewProcessor(minRangeM, maxRangeM float64) *Processor {
	return &Processor{
		respiration: NewRespirationExtractor(),
		heartRate:   NewHeartRateEstimator(),
		movement:    NewMovementDetector(),
		minRangeMM:  minRangeM * 1000,
		maxRangeMM:  maxRangeM * 1000,
	}
}

func (p *Processor) primaryTarget(f Frame) (Target, bool) {
	for _, t := range f.Targets {
		if !t.Valid() {
			continue
		}
		d := t.DistanceMM()
		if d < p.minRangeMM || d > p.maxRangeMM {
			continue
		}
		return t, true
	}
	return Target{}, false
}

// Process implements detectors.Processor.
func (p *Processor) Process(rawFrame detectors.Frame, now time.Time) (map[string]events.Value, events.State, float64, bool) {
	frame, _ := rawFrame.(Frame)

	present := p.presence.Update(now, len(frame.Targets) > 0)

	target, haveTarget := p.primaryTarget(frame)
	if !haveTarget {
		return map[string]events.Value{
			"presence": events.BoolValue(present),
		}, events.StateNormal, 1.0, true
	}

	respRate, respAmp, respConf, respUncertain := p.respiration.Update(float64(target.Y))
	hrRate, hrConf := p.heartRate.Update(float64(target.Y))
	moveLevel, isMacro := p.movement.Update(float64(target.X), float64(target.Y), float64(target.SpeedCMS))

	value := map[string]events.Value{
		"presence":         events.BoolValue(present),
		"distance_mm":      events.NumberValue(target.DistanceMM()),
		"movement_level":   events.NumberValue(moveLevel),
		"macro_movement":   events.BoolValue(isMacro),
		"respiration_rate": events.NumberValue(respRate),
		"respiration_amp":  events.NumberValue(respAmp),
		"heart_rate":       events.NumberValue(hrRate),
	}

	state := events.StateNormal
	confidence := respConf
	if respUncertain {
		state = events.StateUncertain
		confidence = 0
	}
	if hrConf > 0 {
		value["heart_rate_confidence"] = events.NumberValue(hrConf)
	}

	return value, state, confidence, true
}
