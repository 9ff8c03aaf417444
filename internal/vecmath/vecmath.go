// Package vecmath holds the vector arithmetic shared by the embedders and the catalog stores.
package vecmath

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrZeroVector is returned when a vector cannot be normalized.
var ErrZeroVector = errors.New("zero-length vector")

// Normalize returns a unit-norm copy of v.
func Normalize(v []float64) ([]float64, error) {
	n := floats.Norm(v, 2)
	if n == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float64, len(v))
	copy(out, v)
	floats.Scale(1/n, out)
	return out, nil
}

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	return floats.Norm(v, 2)
}

// Dot returns the dot product of a and b. For unit vectors this is the cosine similarity.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dot: lengths %d and %d differ", len(a), len(b))
	}
	return floats.Dot(a, b), nil
}
