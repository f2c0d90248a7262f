package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Statistical helpers shared by the analysis stages, backed by gonum

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// Max returns the largest value, or 0 when empty
func Max(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Max(data)
}
