package harmonic

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/algorithms/spectral"
)

// ErrInvalidArgument is returned for a negative peak count
var ErrInvalidArgument = errors.New("harmonic: invalid argument")

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 // Peak frequency in Hz
	Magnitude float64 // Peak magnitude
	BinIndex  int     // Original FFT bin index
}

// RankBins returns the indices of the count largest magnitudes, largest first.
// Equal magnitudes keep their original order, so the lower bin wins a tie.
// count is clamped to len(magnitudes).
func RankBins(magnitudes []float64, count int) []int {
	count = max(0, min(count, len(magnitudes)))

	indices := make([]int, len(magnitudes))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return magnitudes[indices[a]] > magnitudes[indices[b]]
	})

	return indices[:count]
}

// PeakExtractor ranks the bins of a transform output and reports the dominant
// frequencies. It holds no state besides the sample rate, so repeated calls on
// the same spectrum return the same result.
type PeakExtractor struct {
	sampleRate int
}

// NewPeakExtractor creates an extractor for spectra computed at sampleRate
func NewPeakExtractor(sampleRate int) *PeakExtractor {
	return &PeakExtractor{sampleRate: sampleRate}
}

// SampleRate returns the analysis rate used to map bins to Hz
func (pe *PeakExtractor) SampleRate() int {
	return pe.sampleRate
}

// ExtractPeaks returns the frequencies in Hz of the count strongest bins among
// the first N/2 bins of spectrum, strongest first. Frequencies are
// k*sampleRate/N truncated. A count above N/2 is clamped to N/2 so a real-time
// caller never has to size its request to the window.
func (pe *PeakExtractor) ExtractPeaks(spectrum []common.Complex, count int) ([]int, error) {
	peaks, err := pe.ExtractSpectralPeaks(spectrum, count)
	if err != nil {
		return nil, err
	}

	frequencies := make([]int, len(peaks))
	for i, p := range peaks {
		frequencies[i] = spectral.BinFrequency(p.BinIndex, pe.sampleRate, len(spectrum))
	}
	return frequencies, nil
}

// ExtractSpectralPeaks is ExtractPeaks keeping magnitude and bin information
func (pe *PeakExtractor) ExtractSpectralPeaks(spectrum []common.Complex, count int) ([]SpectralPeak, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: peak count %d", ErrInvalidArgument, count)
	}

	magnitudes := spectral.MagnitudeSpectrum(spectrum)
	bins := RankBins(magnitudes, count)

	peaks := make([]SpectralPeak, len(bins))
	resolution := spectral.BinResolution(pe.sampleRate, len(spectrum))
	for i, k := range bins {
		peaks[i] = SpectralPeak{
			Frequency: float64(k) * resolution,
			Magnitude: magnitudes[k],
			BinIndex:  k,
		}
	}
	return peaks, nil
}

// RefineWithInterpolation refines peak locations using parabolic interpolation
// over the neighbouring bins
func (pe *PeakExtractor) RefineWithInterpolation(magnitudes []float64, peaks []SpectralPeak, windowSize int) []SpectralPeak {
	freqResolution := spectral.BinResolution(pe.sampleRate, windowSize)
	refined := make([]SpectralPeak, len(peaks))

	for i, peak := range peaks {
		refined[i] = peak
		k := peak.BinIndex
		if k <= 0 || k >= len(magnitudes)-1 {
			continue
		}

		y1, y2, y3 := magnitudes[k-1], magnitudes[k], magnitudes[k+1]
		denom := 2.0 * (2.0*y2 - y1 - y3)
		if math.Abs(denom) <= 1e-10 {
			continue
		}

		offset := (y3 - y1) / denom
		a := 0.5 * (y1 - 2.0*y2 + y3)
		b := 0.5 * (y3 - y1)

		refined[i].Frequency = (float64(k) + offset) * freqResolution
		refined[i].Magnitude = y2 + a*offset*offset + b*offset
	}

	return refined
}
