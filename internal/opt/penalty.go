package opt

import "github.com/cwbudde/saddlegrid/internal/grid"

// Penalized lets unconstrained optimizers respect c: points that violate it
// cost eval(x) + penalty. A nil constraint returns eval unchanged.
func Penalized(eval func([]float64) float64, c grid.Constraint, penalty float64) func([]float64) float64 {
	if c == nil {
		return eval
	}
	return func(x []float64) float64 {
		v := eval(x)
		if !c.Holds(x) {
			v += penalty
		}
		return v
	}
}

// Negated turns a maximization objective into a minimization one.
func Negated(eval func([]float64) float64) func([]float64) float64 {
	return func(x []float64) float64 { return -eval(x) }
}
