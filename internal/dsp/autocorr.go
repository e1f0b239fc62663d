package dsp

// RateEstimate is the result of an autocorrelation- or FFT-based
// periodicity search.
type RateEstimate struct {
	RateBPM    float64
	Confidence float64
	Valid      bool
}

// AutocorrelationRate estimates a periodic rate (breaths or beats per
// minute) from a bandpass-filtered signal by finding the first significant
// peak in the normalized autocorrelation between minLagSamples and
// maxLagSamples, exactly the technique SPEC_FULL.md's radar and BCG
// respiration extractors use.
func AutocorrelationRate(signal []float64, sampleRate float64, minLagSamples, maxLagSamples int) RateEstimate {
	n := len(signal)
	if n == 0 {
		return RateEstimate{}
	}

	mean := Mean(signal)
	centered := make([]float64, n)
	for i, v := range signal {
		centered[i] = v - mean
	}

	maxLag := maxLagSamples
	if maxLag >= n {
		maxLag = n - 1
	}
	if minLagSamples >= maxLag {
		return RateEstimate{}
	}

	autocorr := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += centered[i] * centered[i+lag]
		}
		autocorr[lag] = sum
	}
	if autocorr[0] == 0 {
		return RateEstimate{}
	}
	norm := autocorr[0]
	for i := range autocorr {
		autocorr[i] /= norm
	}

	region := autocorr[minLagSamples : maxLag+1]
	peaks := FindPeaks(region, 0.3, int(sampleRate))
	if len(peaks) == 0 {
		return RateEstimate{}
	}

	firstLag := peaks[0] + minLagSamples
	periodSeconds := float64(firstLag) / sampleRate
	if periodSeconds <= 0 {
		return RateEstimate{}
	}

	return RateEstimate{
		RateBPM:    60.0 / periodSeconds,
		Confidence: region[peaks[0]],
		Valid:      true,
	}
}

// FindPeaks returns indices of local maxima in samples with value at least
// minHeight and separated by at least minDistance samples, mirroring
// scipy.signal.find_peaks(height=..., distance=...) as used throughout the
// original detector implementations.
func FindPeaks(samples []float64, minHeight float64, minDistance int) []int {
	if minDistance < 1 {
		minDistance = 1
	}

	var candidates []int
	for i := 1; i < len(samples)-1; i++ {
		if samples[i] < minHeight {
			continue
		}
		if samples[i] >= samples[i-1] && samples[i] >= samples[i+1] {
			candidates = append(candidates, i)
		}
	}

	var peaks []int
	for _, idx := range candidates {
		if len(peaks) == 0 || idx-peaks[len(peaks)-1] >= minDistance {
			peaks = append(peaks, idx)
		} else if samples[idx] > samples[peaks[len(peaks)-1]] {
			// A taller peak within the exclusion window replaces the last one.
			peaks[len(peaks)-1] = idx
		}
	}
	return peaks
}
