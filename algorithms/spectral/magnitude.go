package spectral

import (
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
)

// MagnitudeSpectrum returns |X[k]| for the first N/2 bins of a transform output.
// The upper half mirrors the lower half for real-valued input and is dropped.
func MagnitudeSpectrum(spectrum []common.Complex) []float64 {
	magnitudes := make([]float64, len(spectrum)/2)
	for k := range magnitudes {
		magnitudes[k] = spectrum[k].Abs()
	}
	return magnitudes
}

// BinFrequency maps bin k of an n-point transform at sampleRate to Hz,
// truncated to an integer
func BinFrequency(k, sampleRate, n int) int {
	if n <= 0 {
		return 0
	}
	return k * sampleRate / n
}

// BinResolution returns the width of one bin in Hz
func BinResolution(sampleRate, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sampleRate) / float64(n)
}

// Centroid returns the magnitude-weighted mean frequency in Hz of the first
// len(magnitudes) bins of an n-point transform, or 0 for an all-zero spectrum
func Centroid(magnitudes []float64, sampleRate, n int) float64 {
	total := floats.Sum(magnitudes)
	if total == 0 || n <= 0 {
		return 0
	}

	resolution := BinResolution(sampleRate, n)
	freqs := make([]float64, len(magnitudes))
	for k := range freqs {
		freqs[k] = float64(k) * resolution
	}

	return floats.Dot(freqs, magnitudes) / total
}
