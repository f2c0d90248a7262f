package harmonic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
	"github.com/RyanBlaney/sonido-listen/algorithms/spectral"
)

// spectrumFromMagnitudes builds an N=2*len(mags) spectrum whose lower half has
// the given magnitudes and whose upper half is noise that must be ignored
func spectrumFromMagnitudes(mags []float64) []common.Complex {
	spectrum := make([]common.Complex, 2*len(mags))
	for i, m := range mags {
		spectrum[i] = common.Complex{Re: m}
		spectrum[len(mags)+i] = common.Complex{Re: 1000}
	}
	return spectrum
}

func TestRankBins(t *testing.T) {
	assert.Equal(t, []int{3, 1}, RankBins([]float64{1, 5, 3, 9, 2}, 2))
	assert.Equal(t, []int{1, 3, 0, 2}, RankBins([]float64{2, 7, 1, 7}, 10))
	assert.Empty(t, RankBins([]float64{1, 2}, 0))
	assert.Empty(t, RankBins(nil, 3))
}

func TestExtractPeaksMapsBinsToHz(t *testing.T) {
	const rate = 2000
	spectrum := spectrumFromMagnitudes([]float64{1, 5, 3, 9, 2})
	n := len(spectrum)

	pe := NewPeakExtractor(rate)
	freqs, err := pe.ExtractPeaks(spectrum, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3 * rate / n, 1 * rate / n}, freqs)
}

func TestExtractPeaksTieKeepsLowerBin(t *testing.T) {
	spectrum := spectrumFromMagnitudes([]float64{0, 4, 0, 4, 0, 0, 0, 0})
	pe := NewPeakExtractor(1600)

	peaks, err := pe.ExtractSpectralPeaks(spectrum, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, peaks[0].BinIndex)
	assert.Equal(t, 3, peaks[1].BinIndex)
	assert.InDelta(t, 100.0, peaks[0].Frequency, 1e-12)
}

func TestExtractPeaksIsIdempotent(t *testing.T) {
	spectrum := spectrumFromMagnitudes([]float64{3, 1, 4, 1, 5, 9, 2, 6})
	pe := NewPeakExtractor(2000)

	first, err := pe.ExtractPeaks(spectrum, 4)
	require.NoError(t, err)
	second, err := pe.ExtractPeaks(spectrum, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractPeaksClampsCount(t *testing.T) {
	spectrum := spectrumFromMagnitudes([]float64{3, 1, 4, 1})
	pe := NewPeakExtractor(2000)

	freqs, err := pe.ExtractPeaks(spectrum, 50)
	require.NoError(t, err)
	assert.Len(t, freqs, len(spectrum)/2)
}

func TestExtractPeaksRejectsNegativeCount(t *testing.T) {
	_, err := NewPeakExtractor(2000).ExtractPeaks(spectrumFromMagnitudes([]float64{1}), -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractPeaksFromSinusoid(t *testing.T) {
	const (
		n    = 128
		rate = 2000
		bin  = 14 // 218.75 Hz
	)
	x := make([]float64, n)
	for i := range x {
		x[i] = 1000 * math.Sin(2*math.Pi*bin*float64(i)/n)
	}

	spectrum, err := spectral.Transform(common.RealSequence(x))
	require.NoError(t, err)

	freqs, err := NewPeakExtractor(rate).ExtractPeaks(spectrum, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{bin * rate / n}, freqs)
}

func TestRefineWithInterpolation(t *testing.T) {
	pe := NewPeakExtractor(1600)
	mags := []float64{0, 1, 4, 3, 0}
	peaks := []SpectralPeak{{Frequency: 200, Magnitude: 4, BinIndex: 2}, {BinIndex: 0}}

	refined := pe.RefineWithInterpolation(mags, peaks, 16)
	require.Len(t, refined, 2)

	// vertex of the parabola through (1,1),(2,4),(3,3) is at 2.25
	assert.InDelta(t, 225.0, refined[0].Frequency, 1e-9)
	assert.Greater(t, refined[0].Magnitude, 4.0)
	assert.Equal(t, peaks[1], refined[1])
}
