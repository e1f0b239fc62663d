package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_WrapsAndSnapshots(t *testing.T) {
	r := NewRingBuffer(3)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.Full())

	r.Push(3)
	r.Push(4) // evicts 1
	assert.True(t, r.Full())
	assert.Equal(t, []float64{2, 3, 4}, r.Snapshot())
}

func TestPercentile_Basic(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Percentile(samples, 0))
	assert.Equal(t, 5.0, Percentile(samples, 100))
	assert.InDelta(t, 3.0, Percentile(samples, 50), 0.001)
}

func TestStdDev_ZeroForConstant(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5}))
}

func TestBandpassFilter_AttenuatesOutOfBand(t *testing.T) {
	sampleRate := 100.0
	f := NewBandpassFilter(0.2, 0.5, sampleRate, 4)

	// A 5 Hz tone is well outside the 0.2-0.5 Hz passband and should be
	// attenuated far more than a 0.3 Hz tone that sits inside it.
	n := int(sampleRate * 10)
	inBand := make([]float64, n)
	outOfBand := make([]float64, n)
	for i := 0; i < n; i++ {
		tSec := float64(i) / sampleRate
		inBand[i] = math.Sin(2 * math.Pi * 0.3 * tSec)
		outOfBand[i] = math.Sin(2 * math.Pi * 5.0 * tSec)
	}

	inBandOut := f.FilterArray(inBand)
	outOfBandOut := f.FilterArray(outOfBand)

	assert.Greater(t, RMS(inBandOut[n/2:]), RMS(outOfBandOut[n/2:])*2)
}

func TestAutocorrelationRate_FindsKnownPeriod(t *testing.T) {
	sampleRate := 10.0
	periodSamples := 20 // 0.5 Hz -> 30 BPM
	n := 300
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * float64(i) / float64(periodSamples))
	}

	est := AutocorrelationRate(signal, sampleRate, 5, 100)
	require := assert.New(t)
	require.True(est.Valid)
	expectedBPM := 60.0 * sampleRate / float64(periodSamples)
	require.InDelta(expectedBPM, est.RateBPM, 3.0)
}

func TestFindPeaks_RespectsMinDistance(t *testing.T) {
	samples := []float64{0, 1, 0, 1, 0, 1, 0}
	peaks := FindPeaks(samples, 0.5, 3)
	assert.LessOrEqual(t, len(peaks), 3)
	for i := 1; i < len(peaks); i++ {
		assert.GreaterOrEqual(t, peaks[i]-peaks[i-1], 3)
	}
}

func TestSpectrumMagnitude_PeaksAtToneFrequency(t *testing.T) {
	sampleRate := 100.0
	toneHz := 5.0
	n := 256
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * toneHz * float64(i) / sampleRate)
	}

	freqs, mags := SpectrumMagnitude(samples, sampleRate)
	peakHz, _, ok := PeakInBand(freqs, mags, 1, 20, 2.0)
	assert.True(t, ok)
	assert.InDelta(t, toneHz, peakHz, sampleRate/float64(n)*2)
}

func TestRMSSD_IdenticalIntervalsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, RMSSD([]float64{800, 800, 800}))
}

func TestRMSSD_InsufficientData(t *testing.T) {
	assert.Equal(t, 0.0, RMSSD([]float64{800}))
}

func TestEnvelope_TracksRectifiedAmplitude(t *testing.T) {
	e := NewEnvelope(2.0, 100.0)
	var last float64
	for i := 0; i < 500; i++ {
		last = e.Step(1.0)
	}
	assert.InDelta(t, 1.0, last, 0.05)
}
