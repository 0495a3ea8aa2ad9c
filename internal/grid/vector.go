package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Vector is an immutable point of R^n with n >= 1.
type Vector struct {
	x []float64
}

// NewVector copies x into a new Vector.
func NewVector(x []float64) (Vector, error) {
	if len(x) == 0 {
		return Vector{}, fmt.Errorf("%w: vector must have at least one component", ErrDimensionMismatch)
	}
	return Vector{x: append([]float64(nil), x...)}, nil
}

// MustVector is NewVector for literals known to be non-empty.
func MustVector(x ...float64) Vector {
	v, err := NewVector(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Zero returns the origin of R^n.
func Zero(n int) Vector {
	if n < 1 {
		panic("grid: Zero requires n >= 1")
	}
	return Vector{x: make([]float64, n)}
}

// Ones returns (1, ..., 1) in R^n.
func Ones(n int) Vector {
	v := Zero(n)
	for i := range v.x {
		v.x[i] = 1
	}
	return v
}

// Dim returns the number of components. The zero Vector has Dim 0.
func (v Vector) Dim() int { return len(v.x) }

// At returns component i.
func (v Vector) At(i int) (float64, error) {
	if i < 0 || i >= len(v.x) {
		return 0, fmt.Errorf("%w: component %d of %d", ErrIndex, i, len(v.x))
	}
	return v.x[i], nil
}

// Values returns a copy of the components.
func (v Vector) Values() []float64 {
	return append([]float64(nil), v.x...)
}

// Equal reports whether v and w have the same dimension and components.
func (v Vector) Equal(w Vector) bool {
	if len(v.x) != len(w.x) {
		return false
	}
	for i := range v.x {
		if v.x[i] != w.x[i] {
			return false
		}
	}
	return true
}

func (v Vector) String() string {
	parts := make([]string, len(v.x))
	for i, c := range v.x {
		parts[i] = strconv.FormatFloat(c, 'g', 6, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
