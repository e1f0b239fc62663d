package bcg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJPeakDetector_FindsPeaksWithMinSpacing(t *testing.T) {
	sampleRate := 100.0
	j := newJPeakDetector(sampleRate, 0.5, 25)

	chunkSize := 100
	tSeconds := 0.0
	var totalPeaks int
	for c := 0; c < 5; c++ {
		samples := make([]float64, chunkSize)
		for i := range samples {
			// 1.2Hz cardiac-like tone, well above minPeakDistanceMs spacing.
			samples[i] = math.Sin(2 * math.Pi * 1.2 * (tSeconds + float64(i)/sampleRate))
		}
		peaks := j.process(samples, tSeconds)
		totalPeaks += len(peaks)
		tSeconds += float64(chunkSize) / sampleRate
	}
	assert.GreaterOrEqual(t, totalPeaks, 1)
}

func TestHeartRateCalculator_ComputesMedianBPM(t *testing.T) {
	h := newHeartRateCalculator()
	// Beats spaced 800ms apart -> 75 BPM.
	for i, ts := range []float64{0.0, 0.8, 1.6, 2.4, 3.2, 4.0} {
		h.addPeak(jPeak{timestampS: ts})
		_ = i
	}
	bpm, ok := h.heartRate()
	assert.True(t, ok)
	assert.InDelta(t, 75.0, bpm, 1.0)
}

func TestHeartRateCalculator_RejectsOutOfRangeIntervals(t *testing.T) {
	h := newHeartRateCalculator()
	h.addPeak(jPeak{timestampS: 0.0})
	h.addPeak(jPeak{timestampS: 0.05}) // 50ms, below minPeakDistanceMs
	_, ok := h.heartRate()
	assert.False(t, ok)
}

func TestHeartRateCalculator_HRVNeedsFullWindow(t *testing.T) {
	h := newHeartRateCalculator()
	ts := 0.0
	for i := 0; i < 10; i++ {
		h.addPeak(jPeak{timestampS: ts})
		ts += 0.8
	}
	_, ok := h.hrv()
	assert.False(t, ok) // fewer than hrvWindowBeats(20) intervals
}

func TestBedOccupancyDetector_RequiresSustainedEnergy(t *testing.T) {
	b := newBedOccupancyDetector()
	loud := make([]float64, 10)
	for i := range loud {
		loud[i] = 0.5
	}
	var occupied bool
	for i := 0; i < 15; i++ {
		occupied = b.process(loud)
	}
	assert.True(t, occupied)
}

func TestBedOccupancyDetector_EmptyBedNotOccupied(t *testing.T) {
	b := newBedOccupancyDetector()
	quiet := make([]float64, 10)
	var occupied bool
	for i := 0; i < 15; i++ {
		occupied = b.process(quiet)
	}
	assert.False(t, occupied)
}

func TestMovementDetector_FlagsLargeSwing(t *testing.T) {
	m := newMovementDetector()
	small := []float64{0.01, -0.01, 0.01, -0.01}
	for i := 0; i < 25; i++ {
		m.process(small)
	}
	big := []float64{2.0, -2.0, 2.0, -2.0}
	assert.True(t, m.process(big))
}

func TestSignalQuality_UnoccupiedIsZero(t *testing.T) {
	assert.Equal(t, 0.0, signalQuality(false, false, 70, true))
}

func TestSignalQuality_MovingIsLow(t *testing.T) {
	assert.Equal(t, 0.2, signalQuality(true, true, 70, true))
}

func TestSignalQuality_HealthyRangeIsHigh(t *testing.T) {
	assert.Equal(t, 0.9, signalQuality(true, false, 70, true))
}
