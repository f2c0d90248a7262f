package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
)

// ErrInvalidLength is returned when a transform input is not a power of two
var ErrInvalidLength = errors.New("spectral: sequence length must be a power of two")

// Backend selects the FFT implementation
type Backend string

const (
	// BackendRecursive is the in-package radix-2 divide-and-conquer transform
	BackendRecursive Backend = "recursive"
	// BackendGoDSP delegates to mjibson/go-dsp
	BackendGoDSP Backend = "go-dsp"
	// BackendGonum delegates to gonum's complex FFT
	BackendGonum Backend = "gonum"
)

// ParseBackend resolves a backend name; the empty string selects BackendRecursive
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case "", BackendRecursive:
		return BackendRecursive, nil
	case BackendGoDSP, BackendGonum:
		return Backend(name), nil
	default:
		return "", fmt.Errorf("spectral: unknown fft backend %q", name)
	}
}

// IsPowerOfTwo reports whether n is a positive power of two
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Transform computes the discrete Fourier transform of a power-of-two length
// sequence with the recursive radix-2 algorithm. The input is not modified.
func Transform(seq []common.Complex) ([]common.Complex, error) {
	if !IsPowerOfTwo(len(seq)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(seq))
	}
	return recursiveFFT(seq), nil
}

// recursiveFFT splits into even and odd halves and recombines with the
// butterfly X[k] = E[k] + W^k O[k], X[k+N/2] = E[k] - W^k O[k].
func recursiveFFT(seq []common.Complex) []common.Complex {
	n := len(seq)
	if n == 1 {
		return []common.Complex{seq[0]}
	}

	half := n / 2
	even := make([]common.Complex, half)
	odd := make([]common.Complex, half)
	for i := 0; i < half; i++ {
		even[i] = seq[2*i]
		odd[i] = seq[2*i+1]
	}

	e := recursiveFFT(even)
	o := recursiveFFT(odd)

	out := make([]common.Complex, n)
	for k := 0; k < half; k++ {
		w := common.Expi(-2 * math.Pi * float64(k) / float64(n))
		t := w.Mul(o[k])
		out[k] = e[k].Add(t)
		out[k+half] = e[k].Sub(t)
	}
	return out
}

// FFT provides Fast Fourier Transform functionality over a chosen backend
type FFT struct {
	backend Backend

	// gonum plans are reusable per length
	gonumPlans map[int]*fourier.CmplxFFT
}

// NewFFT creates a new FFT calculator using the recursive backend
func NewFFT() *FFT {
	return NewFFTWithBackend(BackendRecursive)
}

// NewFFTWithBackend creates a new FFT calculator on the given backend
func NewFFTWithBackend(backend Backend) *FFT {
	if backend == "" {
		backend = BackendRecursive
	}
	return &FFT{
		backend:    backend,
		gonumPlans: make(map[int]*fourier.CmplxFFT),
	}
}

// Backend returns the configured implementation
func (f *FFT) Backend() Backend {
	return f.backend
}

// Compute transforms a power-of-two length complex sequence.
// Every backend follows the forward convention W = exp(-2πi/N) without scaling.
func (f *FFT) Compute(seq []common.Complex) ([]common.Complex, error) {
	if !IsPowerOfTwo(len(seq)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, len(seq))
	}

	switch f.backend {
	case BackendGoDSP:
		return common.FromComplex128s(fft.FFT(common.ToComplex128s(seq))), nil

	case BackendGonum:
		plan, ok := f.gonumPlans[len(seq)]
		if !ok {
			plan = fourier.NewCmplxFFT(len(seq))
			f.gonumPlans[len(seq)] = plan
		}
		return common.FromComplex128s(plan.Coefficients(nil, common.ToComplex128s(seq))), nil

	case BackendRecursive:
		return recursiveFFT(seq), nil

	default:
		return nil, fmt.Errorf("spectral: unknown fft backend %q", f.backend)
	}
}
