package opt

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter runs the Mayfly swarm optimizer behind the Optimizer interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly optimizer. Mayfly needs popSize >= 20.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run minimizes eval with Mayfly. The library only takes scalar bounds, so the
// swarm flies in the enclosing box [min(lower), max(upper)]^dim and every
// position is clamped into the real per-dimension bounds before evaluation.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < dim; i++ {
		lo = min(lo, lower[i])
		hi = max(hi, upper[i])
	}
	clamped := func(x []float64) []float64 {
		y := make([]float64, dim)
		for i := range y {
			y[i] = min(max(x[i], lower[i]), upper[i])
		}
		return y
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 { return eval(clamped(x)) }
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lo
	config.UpperBound = hi
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Error("Mayfly optimization failed, falling back to lower bound", "error", err)
		x := clamped(lower)
		return x, eval(x)
	}

	best := clamped(result.GlobalBest.Position)
	return best, result.GlobalBest.Cost
}
