package saddle

import "github.com/cwbudde/saddlegrid/internal/grid"

// Objective is a scalar payoff of two parameter vectors.
type Objective interface {
	Evaluate(alpha, beta grid.Vector) float64
}

// ObjectiveFunc adapts a plain function to Objective.
type ObjectiveFunc func(alpha, beta grid.Vector) float64

// Evaluate calls f(alpha, beta).
func (f ObjectiveFunc) Evaluate(alpha, beta grid.Vector) float64 { return f(alpha, beta) }

// Direction selects minimization or maximization.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Minimize {
		return Maximize
	}
	return Minimize
}

// Better reports whether a is strictly better than b in direction d.
func (d Direction) Better(a, b float64) bool {
	if d == Minimize {
		return a < b
	}
	return a > b
}

func (d Direction) String() string {
	if d == Minimize {
		return "min"
	}
	return "max"
}

// ParseDirection accepts "min"/"minimize" and "max"/"maximize".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	}
	return Minimize, &ConfigError{Field: "Direction", Reason: "unknown direction " + s}
}

// Arg names one of the two objective arguments.
type Arg int

const (
	Alpha Arg = 0
	Beta  Arg = 1
)

// Other returns the argument that is not a.
func (a Arg) Other() Arg { return 1 - a }

func (a Arg) String() string {
	if a == Alpha {
		return "alpha"
	}
	return "beta"
}

// ParseArg accepts "alpha"/"a"/"0" and "beta"/"b"/"1".
func ParseArg(s string) (Arg, error) {
	switch s {
	case "alpha", "a", "0":
		return Alpha, nil
	case "beta", "b", "1":
		return Beta, nil
	}
	return Alpha, &ConfigError{Field: "Arg", Reason: "unknown argument " + s}
}
