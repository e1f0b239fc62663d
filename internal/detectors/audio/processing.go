package audio

import (
	"math"

	"github.com/buzzwordmojo/nightwatch/internal/dsp"
)

const (
	vocalizationLowHz    = 200.0
	vocalizationHighHz   = 3000.0
	vocalizationThresh   = 0.1
	seizureLowHz         = 100.0
	seizureHighHz        = 3000.0
	seizureRhythmLowHz   = 1.5
	seizureRhythmHighHz  = 8.0
	seizureMinDurationS  = 5.0
	seizureEnergyThresh  = 0.005
	breathingRateLowHz   = 0.15
	breathingRateHighHz  = 0.6
	rateWindowSeconds    = 30.0
	minBreathsForRate    = 3
	envelopeSmoothingHz  = 2.0
	seizureSmoothingHz   = 15.0
)

// breathCycle is one detected inhale/exhale threshold crossing.
type breathCycle struct {
	peakTimeS float64
}

// breathingDetector isolates 200-800Hz breathing sounds via bandpass +
// envelope, then derives a rate from threshold-crossing cycles, per
// original_source/detectors/audio/processing.py's BreathingDetector.
type breathingDetector struct {
	sampleRate float64
	bandpass   *dsp.BandpassFilter
	envelope   *dsp.Envelope

	energyHistory []float64
	baseline      float64
	threshold     float64

	inBreath   bool
	breathTime float64
	cycles     []breathCycle
}

func newBreathingDetector(sampleRate, lowHz, highHz, threshold float64) *breathingDetector {
	return &breathingDetector{
		sampleRate: sampleRate,
		bandpass:   dsp.NewBandpassFilter(lowHz, highHz, sampleRate, 4),
		envelope:   dsp.NewEnvelope(envelopeSmoothingHz, sampleRate),
		baseline:   threshold,
		threshold:  threshold,
	}
}

// process runs one chunk through the bandpass+envelope chain and updates
// breath-cycle tracking. tSeconds is the chunk's timestamp in seconds since
// an arbitrary epoch (monotonic within a session is enough).
func (b *breathingDetector) process(samples []float64, tSeconds float64) (detected bool, amplitude float64) {
	filtered := b.bandpass.FilterArray(samples)
	var energy float64
	for _, s := range filtered {
		energy = b.envelope.Step(s)
	}

	b.energyHistory = append(b.energyHistory, energy)
	if len(b.energyHistory) > 100 {
		b.energyHistory = b.energyHistory[len(b.energyHistory)-100:]
	}
	if len(b.energyHistory) >= 50 {
		b.baseline = dsp.Percentile(b.energyHistory, 25)
	}

	thresh := math.Max(b.baseline*2, b.threshold)
	detected = energy > thresh

	if detected && !b.inBreath {
		b.inBreath = true
		b.breathTime = tSeconds
	} else if !detected && b.inBreath {
		b.inBreath = false
		b.cycles = append(b.cycles, breathCycle{peakTimeS: (b.breathTime + tSeconds) / 2})
		if len(b.cycles) > 30 {
			b.cycles = b.cycles[len(b.cycles)-30:]
		}
	}

	maxEnergy := energy
	for _, e := range b.energyHistory {
		if e > maxEnergy {
			maxEnergy = e
		}
	}
	amplitude = clamp01(energy / math.Max(maxEnergy, 0.001))
	return detected, amplitude
}

// rate derives breathing rate in BPM from the median inter-breath interval,
// or ok=false if fewer than minBreathsForRate cycles have been observed.
func (b *breathingDetector) rate() (bpm float64, ok bool) {
	if len(b.cycles) < minBreathsForRate {
		return 0, false
	}
	var intervals []float64
	for i := 1; i < len(b.cycles); i++ {
		iv := b.cycles[i].peakTimeS - b.cycles[i-1].peakTimeS
		if iv >= 1.5 && iv <= 15.0 {
			intervals = append(intervals, iv)
		}
	}
	if len(intervals) < 2 {
		return 0, false
	}
	median := dsp.Median(intervals)
	if median <= 0 {
		return 0, false
	}
	return clampRange(60.0/median, 4.0, 40.0), true
}

// confidence scores rhythm consistency of the most recent cycles.
func (b *breathingDetector) confidence() float64 {
	if len(b.cycles) < 3 {
		return 0.3
	}
	recent := b.cycles
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	if len(recent) < 3 {
		return 0.5
	}
	var intervals []float64
	for i := 1; i < len(recent); i++ {
		intervals = append(intervals, recent[i].peakTimeS-recent[i-1].peakTimeS)
	}
	mean := dsp.Mean(intervals)
	if mean <= 0 {
		return 0.5
	}
	cv := dsp.StdDev(intervals) / mean
	return clampRange(1.0-cv, 0.3, 1.0)
}

// silenceDetector tracks continuous below-noise-floor duration, the
// candidate-apnea signal, per processing.py's SilenceDetector.
type silenceDetector struct {
	margin        float64
	floorConfig   float64
	energyHistory []float64
	noiseFloor    float64
	silentSince   float64
	isSilent      bool
	duration      float64
}

func newSilenceDetector(margin, threshold float64) *silenceDetector {
	return &silenceDetector{margin: margin, floorConfig: threshold, noiseFloor: threshold}
}

func (s *silenceDetector) process(samples []float64, tSeconds float64) float64 {
	energy := dsp.RMS(samples)
	s.energyHistory = append(s.energyHistory, energy)
	if len(s.energyHistory) > 100 {
		s.energyHistory = s.energyHistory[len(s.energyHistory)-100:]
	}
	if len(s.energyHistory) >= 20 {
		s.noiseFloor = dsp.Percentile(s.energyHistory, 5)
	}

	thresh := math.Max(s.noiseFloor*s.margin, s.floorConfig)
	silent := energy < thresh

	if silent {
		if !s.isSilent {
			s.silentSince = tSeconds
			s.isSilent = true
		}
		s.duration = tSeconds - s.silentSince
	} else {
		s.isSilent = false
		s.duration = 0
	}
	return s.duration
}

// vocalizationDetector flags sudden energy spikes in the 200-3000Hz band
// against a rolling baseline, catching cries and gasps that aren't rhythmic
// breathing.
type vocalizationDetector struct {
	bandpass      *dsp.BandpassFilter
	energyHistory []float64
	detected      bool
}

func newVocalizationDetector(sampleRate float64) *vocalizationDetector {
	return &vocalizationDetector{bandpass: dsp.NewBandpassFilter(vocalizationLowHz, vocalizationHighHz, sampleRate, 4)}
}

func (v *vocalizationDetector) process(samples []float64) bool {
	filtered := v.bandpass.FilterArray(samples)
	energy := dsp.RMS(filtered)

	if len(v.energyHistory) >= 5 {
		baseline := dsp.Mean(v.energyHistory)
		v.detected = energy > baseline*3 && energy > vocalizationThresh
	}

	v.energyHistory = append(v.energyHistory, energy)
	if len(v.energyHistory) > 20 {
		v.energyHistory = v.energyHistory[len(v.energyHistory)-20:]
	}
	return v.detected
}

// seizureSoundResult is the outcome of one seizureDetector.process call.
type seizureSoundResult struct {
	Detected      bool
	Confidence    float64
	RhythmicRate  float64
	DurationS     float64
}

// seizureDetector looks for sustained 1.5-8Hz amplitude-modulation rhythm
// in a wide sound band, distinct from breathing/snoring, per
// processing.py's SeizureSoundDetector.
type seizureDetector struct {
	sampleRate    float64
	bandpass      *dsp.BandpassFilter
	envelope      *dsp.Envelope
	envelopeBuf   []float64
	timestamps    []float64
	energyHistory []float64
	baseline      float64

	seizureStart float64
	inSeizure    bool
	duration     float64
	detected     bool
	confidence   float64
	rhythmicRate float64
}

func newSeizureDetector(sampleRate float64) *seizureDetector {
	return &seizureDetector{
		sampleRate: sampleRate,
		bandpass:   dsp.NewBandpassFilter(seizureLowHz, seizureHighHz, sampleRate, 4),
		envelope:   dsp.NewEnvelope(seizureSmoothingHz, sampleRate),
		baseline:   seizureEnergyThresh,
	}
}

func (sd *seizureDetector) process(samples []float64, tSeconds float64) seizureSoundResult {
	filtered := sd.bandpass.FilterArray(samples)
	var meanEnvelope float64
	for _, s := range filtered {
		meanEnvelope = sd.envelope.Step(s)
	}

	sd.energyHistory = append(sd.energyHistory, meanEnvelope)
	if len(sd.energyHistory) > 100 {
		sd.energyHistory = sd.energyHistory[len(sd.energyHistory)-100:]
	}
	if len(sd.energyHistory) >= 50 {
		sd.baseline = dsp.Percentile(sd.energyHistory, 25)
	}

	sd.envelopeBuf = append(sd.envelopeBuf, meanEnvelope)
	sd.timestamps = append(sd.timestamps, tSeconds)
	maxSamples := int(10.0 * (1.0 / (sd.envelopeChunkSeconds())))
	if maxSamples > 0 && len(sd.envelopeBuf) > maxSamples {
		sd.envelopeBuf = sd.envelopeBuf[len(sd.envelopeBuf)-maxSamples:]
		sd.timestamps = sd.timestamps[len(sd.timestamps)-maxSamples:]
	}

	minSamples := int(3.0 / sd.envelopeChunkSeconds())
	if len(sd.envelopeBuf) < minSamples {
		return seizureSoundResult{}
	}

	rhythmic, rate, confidence := sd.analyzeRhythm()

	energyThreshold := math.Max(sd.baseline*1.5, seizureEnergyThresh)
	hasSomeEnergy := meanEnvelope > energyThreshold

	patternDetected := (rhythmic && confidence > 0.6) || (rhythmic && hasSomeEnergy && confidence > 0.3)

	if patternDetected {
		if !sd.inSeizure {
			sd.seizureStart = tSeconds
			sd.inSeizure = true
		}
		sd.duration = tSeconds - sd.seizureStart
		sd.rhythmicRate = rate
		if sd.duration >= seizureMinDurationS {
			sd.detected = true
			boost := clampRange((sd.duration-3.0)*0.05, 0, 0.2)
			sd.confidence = clamp01(confidence + boost)
		}
	} else {
		sd.inSeizure = false
		sd.duration = 0
		sd.detected = false
		sd.confidence = 0
		sd.rhythmicRate = 0
	}

	return seizureSoundResult{Detected: sd.detected, Confidence: sd.confidence, RhythmicRate: sd.rhythmicRate, DurationS: sd.duration}
}

// envelopeChunkSeconds estimates the per-sample spacing of envelopeBuf from
// the most recent two timestamps, falling back to a nominal 100ms chunk.
func (sd *seizureDetector) envelopeChunkSeconds() float64 {
	n := len(sd.timestamps)
	if n < 2 {
		return 0.1
	}
	dt := sd.timestamps[n-1] - sd.timestamps[n-2]
	if dt <= 0 {
		return 0.1
	}
	return dt
}

// analyzeRhythm looks for a spectral peak in the seizure rhythm band
// (1.5-8Hz) of the envelope buffer that is not explained by breathing-rate
// modulation (which would indicate snoring instead).
func (sd *seizureDetector) analyzeRhythm() (rhythmic bool, rateHz, confidence float64) {
	n := len(sd.timestamps)
	if n < 2 {
		return false, 0, 0
	}
	dt := (sd.timestamps[n-1] - sd.timestamps[0]) / float64(n-1)
	if dt <= 0 {
		return false, 0, 0
	}
	envRate := 1.0 / dt

	mean := dsp.Mean(sd.envelopeBuf)
	demeaned := make([]float64, len(sd.envelopeBuf))
	for i, s := range sd.envelopeBuf {
		demeaned[i] = s - mean
	}
	freqs, mags := dsp.SpectrumMagnitude(demeaned, envRate)

	breathingEnergy := dsp.BandEnergy(freqs, mags, breathingRateLowHz, breathingRateHighHz)
	seizureEnergy := dsp.BandEnergy(freqs, mags, seizureRhythmLowHz, seizureRhythmHighHz)
	totalEnergy := dsp.BandEnergy(freqs, mags, 0, envRate/2)
	if totalEnergy <= 0 {
		return false, 0, 0
	}

	peakFreq, peakMag, hasPeak := dsp.PeakInBand(freqs, mags, seizureRhythmLowHz, seizureRhythmHighHz, 0)
	if !hasPeak {
		return false, 0, 0
	}

	energyRatio := seizureEnergy / totalEnergy

	if breathingEnergy > 0 && seizureEnergy/breathingEnergy < 2.0 {
		return false, 0, 0
	}

	var avgMag float64
	nBand := 0
	for i, f := range freqs {
		if f >= seizureRhythmLowHz && f <= seizureRhythmHighHz {
			avgMag += mags[i]
			nBand++
		}
	}
	peakProminence := 0.0
	if nBand > 0 && avgMag > 0 {
		peakProminence = peakMag / (avgMag / float64(nBand))
	}

	rhythmic = energyRatio > 0.15 && peakProminence > 1.5

	base := clamp01((energyRatio * 3) * (peakProminence / 3))
	if breathingEnergy > 0 && seizureEnergy > 0 {
		penalty := math.Min(0.3, breathingEnergy/seizureEnergy*0.5)
		confidence = math.Max(0, base-penalty)
	} else {
		confidence = base
	}

	return rhythmic, peakFreq, confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
