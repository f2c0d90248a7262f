package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-listen/algorithms/common"
)

// Type names an analysis window
type Type string

const (
	// None leaves samples untouched; this is the default analysis path
	None     Type = "none"
	Hann     Type = "hann"
	Hamming  Type = "hamming"
	Bartlett Type = "bartlett"
)

// ParseType resolves a window name; the empty string selects None
func ParseType(name string) (Type, error) {
	switch Type(name) {
	case "", None:
		return None, nil
	case Hann, Hamming, Bartlett:
		return Type(name), nil
	default:
		return "", fmt.Errorf("windowing: unknown window type %q", name)
	}
}

// Window holds precomputed coefficients for one window size
type Window struct {
	kind         Type
	size         int
	coefficients []float64
}

// New creates a window of the given type and size using go-dsp's generators
func New(kind Type, size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("windowing: size must be positive, got %d", size)
	}

	w := &Window{kind: kind, size: size}

	var gen func(int) []float64
	switch kind {
	case None, "":
		w.kind = None
	case Hann:
		gen = window.Hann
	case Hamming:
		gen = window.Hamming
	case Bartlett:
		gen = window.Bartlett
	default:
		return nil, fmt.Errorf("windowing: unknown window type %q", kind)
	}

	// single-point symmetric windows divide by zero in the generators
	if gen != nil && size > 1 {
		w.coefficients = gen(size)
	}

	return w, nil
}

// Apply returns a windowed copy of seq. Both parts of each sample are scaled.
func (w *Window) Apply(seq []common.Complex) ([]common.Complex, error) {
	if len(seq) != w.size {
		return nil, fmt.Errorf("windowing: signal length (%d) doesn't match window size (%d)", len(seq), w.size)
	}

	out := make([]common.Complex, len(seq))
	if w.coefficients == nil {
		copy(out, seq)
		return out, nil
	}
	for i, c := range seq {
		out[i] = c.Scale(w.coefficients[i])
	}
	return out, nil
}

// Coefficients returns a copy of the window coefficients (nil for None)
func (w *Window) Coefficients() []float64 {
	if w.coefficients == nil {
		return nil
	}
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}
