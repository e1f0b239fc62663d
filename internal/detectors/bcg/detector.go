package bcg

import (
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Processor implements detectors.Processor for the mattress BCG chain,
// combining J-peak heart rate, HRV, respiration, occupancy, and movement
// into one Event per chunk, per processing.py's BCGProcessor.
type Processor struct {
	sampleRate float64
	jpeak      *jPeakDetector
	hr         *heartRateCalculator
	resp       *respirationExtractor
	occupancy  *bedOccupancyDetector
	movement   *movementDetector

	startedAt time.Time
}

// NewProcessor builds a BCG Processor from BCGConfig.
func NewProcessor(cfg config.BCGConfig) *Processor {
	sampleRate := float64(cfg.SampleRate)
	if sampleRate <= 0 {
		sampleRate = 100
	}
	lowHz, highHz := cfg.FilterLowHz, cfg.FilterHighHz
	if highHz <= lowHz {
		lowHz, highHz = 0.5, 25.0
	}
	return &Processor{
		sampleRate: sampleRate,
		jpeak:      newJPeakDetector(sampleRate, lowHz, highHz),
		hr:         newHeartRateCalculator(),
		resp:       newRespirationExtractor(sampleRate),
		occupancy:  newBedOccupancyDetector(),
		movement:   newMovementDetector(),
	}
}

// Process implements detectors.Processor.
func (p *Processor) Process(rawFrame detectors.Frame, now time.Time) (map[string]events.Value, events.State, float64, bool) {
	frame, ok := rawFrame.(Frame)
	if !ok || len(frame.Samples) == 0 {
		return nil, events.StateUncertain, 0, false
	}

	if p.startedAt.IsZero() {
		p.startedAt = frame.Timestamp
	}
	tSeconds := frame.Timestamp.Sub(p.startedAt).Seconds()

	occupied := p.occupancy.process(frame.Samples)
	moving := p.movement.process(frame.Samples)

	if occupied && !moving {
		for _, peak := range p.jpeak.process(frame.Samples, tSeconds) {
			p.hr.addPeak(peak)
		}
		p.resp.process(frame.Samples, tSeconds)
	}

	heartRate, hasHR := p.hr.heartRate()
	hrv, hasHRV := p.hr.hrv()
	respRate, hasResp := p.resp.rate()
	quality := signalQuality(occupied, moving, heartRate, hasHR)

	value := map[string]events.Value{
		"bed_occupied":       events.BoolValue(occupied),
		"movement_detected":  events.BoolValue(moving),
		"signal_quality":     events.NumberValue(quality),
	}
	if hasHR {
		value["heart_rate"] = events.NumberValue(heartRate)
	}
	if hasHRV {
		value["hrv_rmssd_ms"] = events.NumberValue(hrv)
	}
	if hasResp {
		value["respiration_rate"] = events.NumberValue(respRate)
	}

	state := events.StateNormal
	switch {
	case !occupied:
		state = events.StateUncertain
	case moving:
		state = events.StateUncertain
	case !hasHR:
		state = events.StateUncertain
	}

	return value, state, quality, true
}
