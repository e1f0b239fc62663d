package bcg

import (
	"github.com/buzzwordmojo/nightwatch/internal/dsp"
)

const (
	minPeakDistanceMs = 400.0
	maxPeakDistanceMs = 2000.0
	occupancyWindowS  = 5.0
	occupancyThresh   = 0.01
	hrvWindowBeats    = 20
	respLowHz         = 0.1
	respHighHz        = 0.5
)

// jPeak is one detected heartbeat.
type jPeak struct {
	timestampS float64
}

// jPeakDetector isolates the BCG heart-rate band and finds J-peaks (the
// largest deflection per cardiac cycle) via an adaptive 75th-percentile
// threshold, per processing.py's JPeakDetector.
type jPeakDetector struct {
	sampleRate       float64
	bandpass         *dsp.BandpassFilter
	amplitudeHistory []float64
	threshold        float64
	minSamplesBetween int
	lastPeakSample   int
	sampleCount      int
}

func newJPeakDetector(sampleRate, lowHz, highHz float64) *jPeakDetector {
	return &jPeakDetector{
		sampleRate:        sampleRate,
		bandpass:          dsp.NewBandpassFilter(lowHz, highHz, sampleRate, 4),
		minSamplesBetween: int(minPeakDistanceMs * sampleRate / 1000),
	}
}

func (j *jPeakDetector) process(samples []float64, tSeconds float64) []jPeak {
	filtered := j.bandpass.FilterArray(samples)

	for _, s := range filtered {
		v := s
		if v < 0 {
			v = -v
		}
		j.amplitudeHistory = append(j.amplitudeHistory, v)
	}
	if len(j.amplitudeHistory) > 200 {
		j.amplitudeHistory = j.amplitudeHistory[len(j.amplitudeHistory)-200:]
	}
	if len(j.amplitudeHistory) >= 50 {
		j.threshold = dsp.Percentile(j.amplitudeHistory, 75)
	}

	minHeight := j.threshold
	if minHeight < 0.001 {
		minHeight = 0.001
	}

	peakIdx := dsp.FindPeaks(filtered, minHeight, j.minSamplesBetween)

	var newPeaks []jPeak
	samplePeriod := 1.0 / j.sampleRate
	for _, idx := range peakIdx {
		global := j.sampleCount + idx
		if global-j.lastPeakSample < j.minSamplesBetween {
			continue
		}
		newPeaks = append(newPeaks, jPeak{timestampS: tSeconds + float64(idx)*samplePeriod})
		j.lastPeakSample = global
	}
	j.sampleCount += len(samples)
	return newPeaks
}

// heartRateCalculator derives BPM and RMSSD HRV from inter-beat intervals,
// per processing.py's HeartRateCalculator.
type heartRateCalculator struct {
	intervalsMs  []float64
	lastPeakTime float64
	hasLastPeak  bool
}

func newHeartRateCalculator() *heartRateCalculator { return &heartRateCalculator{} }

func (h *heartRateCalculator) addPeak(p jPeak) {
	if h.hasLastPeak {
		intervalMs := (p.timestampS - h.lastPeakTime) * 1000
		if intervalMs >= minPeakDistanceMs && intervalMs <= maxPeakDistanceMs {
			h.intervalsMs = append(h.intervalsMs, intervalMs)
			if len(h.intervalsMs) > 30 {
				h.intervalsMs = h.intervalsMs[len(h.intervalsMs)-30:]
			}
		}
	}
	h.lastPeakTime = p.timestampS
	h.hasLastPeak = true
}

func (h *heartRateCalculator) heartRate() (bpm float64, ok bool) {
	if len(h.intervalsMs) < 5 {
		return 0, false
	}
	median := dsp.Median(h.intervalsMs)
	if median <= 0 {
		return 0, false
	}
	return clampRange(60000.0/median, 30.0, 200.0), true
}

func (h *heartRateCalculator) hrv() (rmssd float64, ok bool) {
	if len(h.intervalsMs) < hrvWindowBeats {
		return 0, false
	}
	window := h.intervalsMs[len(h.intervalsMs)-hrvWindowBeats:]
	return dsp.RMSSD(window), true
}

// respirationExtractor recovers breathing rate from the amplitude
// modulation of the BCG waveform's low-frequency band, per processing.py's
// RespirationExtractor.
type respirationExtractor struct {
	sampleRate float64
	bandpass   *dsp.BandpassFilter
	envelope   []float64
	times      []float64
}

func newRespirationExtractor(sampleRate float64) *respirationExtractor {
	return &respirationExtractor{
		sampleRate: sampleRate,
		bandpass:   dsp.NewBandpassFilter(respLowHz, respHighHz, sampleRate, 2),
	}
}

func (r *respirationExtractor) process(samples []float64, tSeconds float64) {
	filtered := r.bandpass.FilterArray(samples)
	step := len(filtered) / 2
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(filtered); i += step {
		v := filtered[i]
		if v < 0 {
			v = -v
		}
		r.envelope = append(r.envelope, v)
		r.times = append(r.times, tSeconds+float64(i)/r.sampleRate)
	}
	maxSamples := int(r.sampleRate * 60)
	if len(r.envelope) > maxSamples {
		trim := len(r.envelope) - maxSamples
		r.envelope = r.envelope[trim:]
		r.times = r.times[trim:]
	}
}

func (r *respirationExtractor) rate() (bpm float64, ok bool) {
	if len(r.envelope) < 100 {
		return 0, false
	}
	duration := r.times[len(r.times)-1] - r.times[0]
	if duration <= 0 {
		return 0, false
	}
	samplesPerSec := float64(len(r.envelope)) / duration
	minLag := int(2.0 * samplesPerSec)
	maxLag := int(15.0 * samplesPerSec)

	est := dsp.AutocorrelationRate(r.envelope, samplesPerSec, minLag, maxLag)
	if !est.Valid {
		return 0, false
	}
	return clampRange(est.RateBPM, 6.0, 30.0), true
}

// bedOccupancyDetector flags whether the mattress is currently occupied
// from sustained RMS energy over a rolling window, per processing.py's
// BedOccupancyDetector.
type bedOccupancyDetector struct {
	energyHistory []float64
	occupied      bool
}

func newBedOccupancyDetector() *bedOccupancyDetector { return &bedOccupancyDetector{} }

func (b *bedOccupancyDetector) process(samples []float64) bool {
	energy := dsp.RMS(samples)
	b.energyHistory = append(b.energyHistory, energy)
	if len(b.energyHistory) > int(occupancyWindowS*10) {
		b.energyHistory = b.energyHistory[len(b.energyHistory)-int(occupancyWindowS*10):]
	}
	if len(b.energyHistory) < 10 {
		return false
	}
	b.occupied = dsp.Median(b.energyHistory) > occupancyThresh
	return b.occupied
}

// movementDetector flags large postural shifts that saturate the signal
// and should suppress heart-rate detection, per processing.py's
// MovementDetector.
type movementDetector struct {
	baseline      float64
	energyHistory []float64
	moving        bool
}

func newMovementDetector() *movementDetector { return &movementDetector{baseline: 0.01} }

func (m *movementDetector) process(samples []float64) bool {
	if len(samples) == 0 {
		return false
	}
	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	amplitude := hi - lo
	m.energyHistory = append(m.energyHistory, amplitude)
	if len(m.energyHistory) > 50 {
		m.energyHistory = m.energyHistory[len(m.energyHistory)-50:]
	}
	if len(m.energyHistory) >= 20 {
		m.baseline = dsp.Percentile(m.energyHistory, 25)
	}
	m.moving = amplitude > m.baseline*5
	return m.moving
}

// signalQuality scores 0-1 how trustworthy the heart-rate reading is,
// per processing.py's _calculate_quality.
func signalQuality(occupied, moving bool, heartRate float64, hasHeartRate bool) float64 {
	if !occupied {
		return 0.0
	}
	if moving {
		return 0.2
	}
	if !hasHeartRate {
		return 0.4
	}
	switch {
	case heartRate >= 40 && heartRate <= 120:
		return 0.9
	case heartRate >= 30 && heartRate <= 150:
		return 0.7
	default:
		return 0.5
	}
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
