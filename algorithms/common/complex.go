package common

import "math"

// Complex is a double-precision complex sample. Values are immutable; every
// operation returns a new Complex.
type Complex struct {
	Re float64
	Im float64
}

// NewComplex creates a complex value from its parts
func NewComplex(re, im float64) Complex {
	return Complex{Re: re, Im: im}
}

// Expi returns e^(i*theta) = cos(theta) + i*sin(theta)
func Expi(theta float64) Complex {
	sin, cos := math.Sincos(theta)
	return Complex{Re: cos, Im: sin}
}

func (c Complex) Add(o Complex) Complex {
	return Complex{Re: c.Re + o.Re, Im: c.Im + o.Im}
}

func (c Complex) Sub(o Complex) Complex {
	return Complex{Re: c.Re - o.Re, Im: c.Im - o.Im}
}

func (c Complex) Mul(o Complex) Complex {
	return Complex{
		Re: c.Re*o.Re - c.Im*o.Im,
		Im: c.Re*o.Im + c.Im*o.Re,
	}
}

// Scale multiplies both parts by a real factor
func (c Complex) Scale(f float64) Complex {
	return Complex{Re: c.Re * f, Im: c.Im * f}
}

// Abs returns the magnitude sqrt(re² + im²)
func (c Complex) Abs() float64 {
	return math.Sqrt(c.Re*c.Re + c.Im*c.Im)
}

// Complex128 converts to the builtin complex type
func (c Complex) Complex128() complex128 {
	return complex(c.Re, c.Im)
}

// FromComplex128 converts from the builtin complex type
func FromComplex128(v complex128) Complex {
	return Complex{Re: real(v), Im: imag(v)}
}

// RealSequence wraps real samples as complex values with zero imaginary part
func RealSequence(x []float64) []Complex {
	out := make([]Complex, len(x))
	for i, v := range x {
		out[i] = Complex{Re: v}
	}
	return out
}

// ToComplex128s converts a sequence for libraries operating on []complex128
func ToComplex128s(seq []Complex) []complex128 {
	out := make([]complex128, len(seq))
	for i, c := range seq {
		out[i] = c.Complex128()
	}
	return out
}

// FromComplex128s converts a []complex128 result back into Complex values
func FromComplex128s(seq []complex128) []Complex {
	out := make([]Complex, len(seq))
	for i, v := range seq {
		out[i] = FromComplex128(v)
	}
	return out
}

// RealParts extracts the real component of every sample
func RealParts(seq []Complex) []float64 {
	out := make([]float64, len(seq))
	for i, c := range seq {
		out[i] = c.Re
	}
	return out
}
