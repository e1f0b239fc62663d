package dsp

import "math"

// HanningWindow returns a Hann window of length n, applied before every FFT
// in this package to reduce spectral leakage (matching the original
// detector implementations' np.hanning use).
func HanningWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// fftComplex is a minimal in-place iterative radix-2 FFT operating on
// parallel real (re) and imaginary (im) slices. The window sizes used by Nightwatch's detectors
// (a few hundred to a couple thousand samples per tick) make even a naive
// implementation cheap relative to the detector's own tick period.
func fftComplex(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for i := 0; i < n; i += length {
			curRe, curIm := 1.0, 0.0
			for j := 0; j < length/2; j++ {
				uRe, uIm := re[i+j], im[i+j]
				vRe := re[i+j+length/2]*curRe - im[i+j+length/2]*curIm
				vIm := re[i+j+length/2]*curIm + im[i+j+length/2]*curRe

				re[i+j] = uRe + vRe
				im[i+j] = uIm + vIm
				re[i+j+length/2] = uRe - vRe
				im[i+j+length/2] = uIm - vIm

				nextRe := curRe*wRe - curIm*wIm
				nextIm := curRe*wIm + curIm*wRe
				curRe, curIm = nextRe, nextIm
			}
		}
	}
}

// SpectrumMagnitude computes the magnitude spectrum of samples (Hann
// windowed, zero-padded to the next power of two) along with the
// corresponding frequency bins for a stream sampled at sampleRate Hz.
func SpectrumMagnitude(samples []float64, sampleRate float64) (freqs, magnitude []float64) {
	n := len(samples)
	if n == 0 {
		return nil, nil
	}

	padded := nextPowerOfTwo(n)
	window := HanningWindow(n)

	re := make([]float64, padded)
	im := make([]float64, padded)
	for i, s := range samples {
		re[i] = s * window[i]
	}

	fftComplex(re, im)

	half := padded/2 + 1
	freqs = make([]float64, half)
	magnitude = make([]float64, half)
	for k := 0; k < half; k++ {
		freqs[k] = float64(k) * sampleRate / float64(padded)
		magnitude[k] = math.Hypot(re[k], im[k])
	}
	return freqs, magnitude
}

// PeakInBand returns the frequency and magnitude of the largest spectral
// peak within [lowHz, highHz], and whether it clears the given ratio over
// the mean magnitude across the whole spectrum (the "peak-to-sidelobe"
// rejection test SPEC_FULL.md's heart-rate and seizure-rhythm estimators
// both perform).
func PeakInBand(freqs, magnitude []float64, lowHz, highHz, minPeakToMeanRatio float64) (peakHz, peakMag float64, ok bool) {
	if len(freqs) == 0 {
		return 0, 0, false
	}

	var meanMag float64
	for _, m := range magnitude {
		meanMag += m
	}
	meanMag /= float64(len(magnitude))

	bestIdx := -1
	for i, f := range freqs {
		if f < lowHz || f > highHz {
			continue
		}
		if bestIdx == -1 || magnitude[i] > magnitude[bestIdx] {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return 0, 0, false
	}
	if meanMag > 0 && magnitude[bestIdx] < meanMag*minPeakToMeanRatio {
		return freqs[bestIdx], magnitude[bestIdx], false
	}
	return freqs[bestIdx], magnitude[bestIdx], true
}

// BandEnergy sums squared magnitude within [lowHz, highHz], used to compare
// seizure-rhythm energy against breathing-band energy.
func BandEnergy(freqs, magnitude []float64, lowHz, highHz float64) float64 {
	var sum float64
	for i, f := range freqs {
		if f < lowHz || f > highHz {
			continue
		}
		sum += magnitude[i] * magnitude[i]
	}
	return sum
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
