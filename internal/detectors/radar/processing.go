package radar

import (
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/dsp"
)

const sampleRateHz = 10.0

// RespirationExtractor tracks the primary target's Y position over a 30s
// ring and estimates breathing rate via bandpass + autocorrelation, per
// SPEC_FULL.md §4.2.
type RespirationExtractor struct {
	ring   *dsp.RingBuffer
	filter *dsp.BandpassFilter

	lastRate       float64
	lastAmplitude  float64
	lastConfidence float64
	haveRate       bool
}

func NewRespirationExtractor() *RespirationExtractor {
	return &RespirationExtractor{
		ring:   dsp.NewRingBuffer(int(sampleRateHz * 30)),
		filter: dsp.NewBandpassFilter(0.1, 0.5, sampleRateHz, 4),
	}
}

// Update feeds one new Y sample (mm) and returns rate (BPM), amplitude
// (0-1), confidence (0-1), and uncertain=true if fewer than 3 peaks were
// found in the last 30s window.
func (r *RespirationExtractor) Update(yMM float64) (rate, amplitude, confidence float64, uncertain bool) {
	r.ring.Push(yMM)
	if r.ring.Len() < int(sampleRateHz*5) {
		return 0, 0, 0, true
	}

	samples := r.ring.Snapshot()
	mean := dsp.Mean(samples)
	centered := make([]float64, len(samples))
	for i, s := range samples {
		centered[i] = s - mean
	}
	filtered := r.filter.FilterArray(centered)

	minLag := int(sampleRateHz * 60.0 / 40.0) // 40 BPM ceiling
	maxLag := int(sampleRateHz * 60.0 / 4.0)   // 4 BPM floor
	est := dsp.AutocorrelationRate(filtered, sampleRateHz, minLag, maxLag)

	amp := dsp.Percentile(filtered, 75) - dsp.Percentile(filtered, 25)
	amplitude = clamp01(amp / 10.0)

	peaks := dsp.FindPeaks(filtered, 0, int(sampleRateHz*1.5))
	if len(peaks) < 3 {
		uncertain = true
		if r.haveRate {
			return r.lastRate, amplitude, 0, true
		}
		return 0, amplitude, 0, true
	}

	if est.Valid {
		r.lastRate = clampRange(est.RateBPM, 4, 40)
		r.lastConfidence = est.Confidence
		r.haveRate = true
	}
	r.lastAmplitude = amplitude

	return r.lastRate, r.lastAmplitude, r.lastConfidence, false
}

// HeartRateEstimator produces a low-confidence heart-rate estimate from the
// same target track's micro-movement, via FFT peak in the 0.8-2.0Hz band.
type HeartRateEstimator struct {
	ring   *dsp.RingBuffer
	filter *dsp.BandpassFilter

	lastRate float64
	haveRate bool
}

func NewHeartRateEstimator() *HeartRateEstimator {
	return &HeartRateEstimator{
		ring:   dsp.NewRingBuffer(int(sampleRateHz * 15)),
		filter: dsp.NewBandpassFilter(0.8, 2.0, sampleRateHz, 3),
	}
}

// Update feeds one new Y sample and returns rate (BPM) and confidence,
// capped at 0.5 per SPEC_FULL.md (radar heart-rate is always low-confidence).
func (h *HeartRateEstimator) Update(yMM float64) (rate, confidence float64) {
	h.ring.Push(yMM)
	if h.ring.Len() < int(sampleRateHz*7.5) {
		if h.haveRate {
			return h.lastRate, 0.3
		}
		return 0, 0
	}

	samples := h.ring.Snapshot()
	mean := dsp.Mean(samples)
	centered := make([]float64, len(samples))
	for i, s := range samples {
		centered[i] = s - mean
	}
	filtered := h.filter.FilterArray(centered)

	freqs, mag := dsp.SpectrumMagnitude(filtered, sampleRateHz)
	peakHz, _, ok := dsp.PeakInBand(freqs, mag, 0.8, 2.0, 1.5)
	if !ok {
		if h.haveRate {
			return h.lastRate, 0.3
		}
		return 0, 0
	}

	rateBPM := peakHz * 60
	if rateBPM <= 45 || rateBPM >= 130 {
		if h.haveRate {
			return h.lastRate, 0.3
		}
		return 0, 0
	}

	h.lastRate = rateBPM
	h.haveRate = true
	return h.lastRate, 0.5
}

// MovementDetector classifies macro vs micro movement from rolling position
// variance and target speed.
type MovementDetector struct {
	xRing, yRing, speedRing *dsp.RingBuffer
}

func NewMovementDetector() *MovementDetector {
	n := int(sampleRateHz * 1.0) // 1s window per SPEC_FULL.md §4.2 radar movement
	return &MovementDetector{
		xRing:     dsp.NewRingBuffer(n),
		yRing:     dsp.NewRingBuffer(n),
		speedRing: dsp.NewRingBuffer(n),
	}
}

// Update feeds one target sample and returns a 0-1 movement level and
// whether this tick classifies as macro movement.
func (m *MovementDetector) Update(x, y, speedCMS float64) (level float64, isMacro bool) {
	m.xRing.Push(x)
	m.yRing.Push(y)
	m.speedRing.Push(absF(speedCMS))

	if m.xRing.Len() < 3 {
		return 0, false
	}

	xVar := variance(m.xRing.Snapshot())
	yVar := variance(m.yRing.Snapshot())
	totalVar := sqrtF(xVar + yVar)
	avgSpeed := dsp.Mean(m.speedRing.Snapshot())

	const macroThresholdMM = 100.0
	isMacro = totalVar > macroThresholdMM || avgSpeed > 50
	level = clamp01(totalVar / macroThresholdMM)
	return level, isMacro
}

// PresenceTracker reports presence when a target has been seen for at
// least 1s of the last 3s.
type PresenceTracker struct {
	seenAt []time.Time
}

func (p *PresenceTracker) Update(now time.Time, hasTarget bool) bool {
	if hasTarget {
		p.seenAt = append(p.seenAt, now)
	}
	cutoff := now.Add(-3 * time.Second)
	i := 0
	for ; i < len(p.seenAt); i++ {
		if p.seenAt[i].After(cutoff) {
			break
		}
	}
	p.seenAt = p.seenAt[i:]

	if len(p.seenAt) < 2 {
		return false
	}
	span := p.seenAt[len(p.seenAt)-1].Sub(p.seenAt[0])
	return span >= 1*time.Second
}

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sqrtF(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 30; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

func variance(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	m := dsp.Mean(samples)
	var sum float64
	for _, s := range samples {
		d := s - m
		sum += d * d
	}
	return sum / float64(len(samples))
}
