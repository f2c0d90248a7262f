package filters

import (
	"math"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
)

// DefaultDCCutoff is the -3 dB corner used when none is given
const DefaultDCCutoff = 20.0

// DCBlocker is a one-pole high-pass filter removing the 0 Hz component:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// Microphones often carry an offset that would otherwise own bin 0.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole       float64
	sampleRate int
}

// NewDCBlocker creates a blocker with its corner at cutoffHz. The pole is
// R = 1 - 2*pi*fc/fs, clamped to (0, 1).
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	if cutoffHz <= 0 {
		cutoffHz = DefaultDCCutoff
	}

	pole := 0.995
	if sampleRate > 0 {
		pole = 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
	}
	pole = max(0.001, min(pole, 0.999))

	return &DCBlocker{pole: pole, sampleRate: sampleRate}
}

// Pole returns R
func (b *DCBlocker) Pole() float64 {
	return b.pole
}

// Cutoff returns the approximate -3 dB frequency, (1-R)*fs/(2*pi)
func (b *DCBlocker) Cutoff() float64 {
	return (1.0 - b.pole) * float64(b.sampleRate) / (2.0 * math.Pi)
}

// Apply filters the real parts of seq and returns a new sequence. Each call
// starts from rest with x[-1] = x[0], so a constant window filters to zero and
// windows stay independent of each other.
func (b *DCBlocker) Apply(seq []common.Complex) []common.Complex {
	out := make([]common.Complex, len(seq))
	if len(seq) == 0 {
		return out
	}

	x1, y1 := seq[0].Re, 0.0
	for i, v := range seq {
		y := v.Re - x1 + b.pole*y1
		out[i] = common.Complex{Re: y}
		x1, y1 = v.Re, y
	}
	return out
}
