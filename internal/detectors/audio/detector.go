package audio

import (
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Processor implements detectors.Processor for the microphone chain,
// combining breathing, silence, vocalization, and seizure-sound detection
// into one Event per chunk, per original_source/detectors/audio/processing.py's
// AudioProcessor.
type Processor struct {
	sampleRate     float64
	silenceMinS    float64
	breathing      *breathingDetector
	silence        *silenceDetector
	vocalization   *vocalizationDetector
	seizure        *seizureDetector
	startedAt      time.Time
}

// NewProcessor builds an audio Processor from AudioConfig.
func NewProcessor(cfg config.AudioConfig) *Processor {
	sampleRate := float64(cfg.SampleRate)
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Processor{
		sampleRate:   sampleRate,
		silenceMinS:  10.0,
		breathing:    newBreathingDetector(sampleRate, cfg.BreathingFreqMinHz, cfg.BreathingFreqMaxHz, cfg.BreathingThreshold),
		silence:      newSilenceDetector(cfg.SilenceMargin, cfg.SilenceThreshold),
		vocalization: newVocalizationDetector(sampleRate),
		seizure:      newSeizureDetector(sampleRate),
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

	breathingDetected, amplitude := p.breathing.process(frame.Samples, tSeconds)
	silenceDuration := p.silence.process(frame.Samples, tSeconds)
	vocalization := p.vocalization.process(frame.Samples)
	seizure := p.seizure.process(frame.Samples, tSeconds)

	rate, hasRate := p.breathing.rate()
	confidence := p.breathing.confidence()

	value := map[string]events.Value{
		"breathing_detected":  events.BoolValue(breathingDetected),
		"breathing_amplitude": events.NumberValue(amplitude),
		"silence_duration_s":  events.NumberValue(silenceDuration),
		"vocalization":        events.BoolValue(vocalization),
	}
	if hasRate {
		value["breathing_rate"] = events.NumberValue(rate)
	}
	if seizure.Detected {
		value["seizure_confidence"] = events.NumberValue(seizure.Confidence)
		value["seizure_rhythm_hz"] = events.NumberValue(seizure.RhythmicRate)
	}

	state := events.StateNormal
	switch {
	case seizure.Detected:
		state = events.StateAlert
	case silenceDuration >= p.silenceMinS:
		state = events.StateAlert
	case vocalization:
		state = events.StateAlert
	case !hasRate:
		state = events.StateUncertain
	}

	return value, state, confidence, true
}
