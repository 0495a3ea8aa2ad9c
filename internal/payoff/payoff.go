// Package payoff holds the built-in problems the solver can be pointed at:
// simple analytic objectives and finite zero-sum matrix games whose mixed
// strategies are parameterized over simplex-constrained unit cubes.
package payoff

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/saddle"
)

// ErrUnknownProblem is returned by Lookup for unregistered names.
var ErrUnknownProblem = errors.New("payoff: unknown problem")

// Problem is everything the solver needs for one saddle-point search.
type Problem struct {
	Name        string
	Description string
	Objective   saddle.Objective
	Dims        [2]int
	Constraints [2]grid.Constraint
	Outer       saddle.Direction
	OuterArg    saddle.Arg
}

var registry = map[string]func() (Problem, error){
	"quadratic": func() (Problem, error) { return Quadratic(2), nil },
	"bilinear":  func() (Problem, error) { return Bilinear(), nil },
	"halving":   func() (Problem, error) { return Halving(4), nil },
	"pennies":   func() (Problem, error) { return MatrixGame("pennies", Pennies) },
	"rps":       func() (Problem, error) { return MatrixGame("rps", RockPaperScissors) },
	"inspection": func() (Problem, error) {
		return MatrixGame("inspection", Inspection)
	},
	"pennies+rps": func() (Problem, error) {
		return SumGame("pennies+rps", Pennies, RockPaperScissors)
	},
}

// Names lists the registered problems in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the registered problem called name.
func Lookup(name string) (Problem, error) {
	build, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProblem, name, Names())
	}
	return build()
}

// WithOverrides returns p with its outer direction and outer argument
// replaced by the parsed values of outer and outerArg. Empty strings keep
// the problem's own choice.
func (p Problem) WithOverrides(outer, outerArg string) (Problem, error) {
	if outer != "" {
		d, err := saddle.ParseDirection(outer)
		if err != nil {
			return Problem{}, err
		}
		p.Outer = d
	}
	if outerArg != "" {
		a, err := saddle.ParseArg(outerArg)
		if err != nil {
			return Problem{}, err
		}
		p.OuterArg = a
	}
	return p, nil
}

// Quadratic is f = sum_i (alpha_i - 0.5)^2 - sum_i (beta_i - 0.5)^2 over
// [0,1]^n x [0,1]^n, with its saddle point at the center and value 0.
func Quadratic(n int) Problem {
	return Problem{
		Name:        "quadratic",
		Description: "convex-concave bowl, saddle at (0.5, ..., 0.5) with value 0",
		Objective: saddle.ObjectiveFunc(func(alpha, beta grid.Vector) float64 {
			return sqDist(alpha.Values(), 0.5) - sqDist(beta.Values(), 0.5)
		}),
		Dims:     [2]int{n, n},
		Outer:    saddle.Minimize,
		OuterArg: saddle.Alpha,
	}
}

// Bilinear is f = beta_0 - alpha_0 on [0,1]^2; min_alpha max_beta is 0 at (1, 1).
func Bilinear() Problem {
	return Problem{
		Name:        "bilinear",
		Description: "f = b - a, saddle at a = b = 1 with value 0",
		Objective: saddle.ObjectiveFunc(func(alpha, beta grid.Vector) float64 {
			return beta.Values()[0] - alpha.Values()[0]
		}),
		Dims:     [2]int{1, 1},
		Outer:    saddle.Minimize,
		OuterArg: saddle.Alpha,
	}
}

// Halving ignores alpha and penalizes beta's distance to (1/2, 1/4, 1/8, ...).
// The outer loop maximizes over a one-dimensional dummy alpha, so every inner
// search is the minimization over beta of interest.
func Halving(n int) Problem {
	return Problem{
		Name:        "halving",
		Description: "f = sum_i (beta_i - 2^-(i+1))^2, minimum at (0.5, 0.25, 0.125, ...)",
		Objective: saddle.ObjectiveFunc(func(_, beta grid.Vector) float64 {
			var w float64
			r := 1.0
			for _, b := range beta.Values() {
				r *= 0.5
				d := b - r
				w += d * d
			}
			return w
		}),
		Dims:     [2]int{1, n},
		Outer:    saddle.Maximize,
		OuterArg: saddle.Alpha,
	}
}

func sqDist(x []float64, c float64) float64 {
	var s float64
	for _, v := range x {
		d := v - c
		s += d * d
	}
	return s
}
