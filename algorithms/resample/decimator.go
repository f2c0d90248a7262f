package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
)

var (
	// ErrOutOfRange is returned when a decimation index falls outside the captured window
	ErrOutOfRange = errors.New("resample: decimation index out of range")

	// ErrInvalidRate is returned for non-positive rates or upsampling requests
	ErrInvalidRate = errors.New("resample: invalid sample rate")
)

// Decimator reduces a hardware-rate window to a target rate by nearest-sample
// selection: output[i] = raw[i*step].
//
// The step is hardwareRate/targetRate with integer division. When the ratio is
// not exact the effective output rate is slightly higher than targetRate; this
// is a known precision trade-off and is not corrected.
type Decimator struct {
	hardwareRate int
	targetRate   int
	step         int
}

// NewDecimator creates a decimator from hardwareRate down to targetRate
func NewDecimator(hardwareRate, targetRate int) (*Decimator, error) {
	if hardwareRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("%w: hardware=%d target=%d", ErrInvalidRate, hardwareRate, targetRate)
	}
	if targetRate > hardwareRate {
		return nil, fmt.Errorf("%w: target %d exceeds hardware rate %d", ErrInvalidRate, targetRate, hardwareRate)
	}

	return &Decimator{
		hardwareRate: hardwareRate,
		targetRate:   targetRate,
		step:         hardwareRate / targetRate,
	}, nil
}

// Step returns the decimation stride
func (d *Decimator) Step() int {
	return d.step
}

// HardwareRate returns the input rate in Hz
func (d *Decimator) HardwareRate() int {
	return d.hardwareRate
}

// TargetRate returns the nominal output rate in Hz
func (d *Decimator) TargetRate() int {
	return d.targetRate
}

// OutputLength returns how many samples a window of sampleCount raw samples yields
func (d *Decimator) OutputLength(sampleCount int) int {
	if sampleCount <= 0 {
		return 0
	}
	// split as q*hw + r so the product cannot overflow
	q, r := sampleCount/d.hardwareRate, sampleCount%d.hardwareRate
	return q*d.targetRate + r*d.targetRate/d.hardwareRate
}

// Decimate selects every step-th sample of raw, producing OutputLength(sampleCount)
// complex samples with zero imaginary part. sampleCount is the window length the
// caller asked for; if raw holds fewer samples than the selection needs the call
// fails with ErrOutOfRange instead of reading past the buffer.
func (d *Decimator) Decimate(raw []int16, sampleCount int) ([]common.Complex, error) {
	if sampleCount > math.MaxInt/d.targetRate {
		return nil, fmt.Errorf("%w: window of %d samples is too large", ErrOutOfRange, sampleCount)
	}

	newLength := d.OutputLength(sampleCount)
	if newLength == 0 {
		return []common.Complex{}, nil
	}

	if last := (newLength - 1) * d.step; last >= len(raw) {
		return nil, fmt.Errorf("%w: index %d with %d captured samples", ErrOutOfRange, last, len(raw))
	}

	out := make([]common.Complex, newLength)
	for i := range out {
		out[i] = common.Complex{Re: float64(raw[i*d.step])}
	}
	return out, nil
}
