package opt

import (
	"log/slog"
	"math"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/saddle"
)

// GridSearch minimizes with the adaptive grid refinement of the saddle
// solver, restricted to points that satisfy an optional constraint.
type GridSearch struct {
	cfg   saddle.Config
	c     grid.Constraint
	stats saddle.Stats
}

// NewGridSearch creates a grid-refinement optimizer. c is stated in the
// coordinates of the box passed to Run and may be nil.
func NewGridSearch(cfg saddle.Config, c grid.Constraint) *GridSearch {
	return &GridSearch{cfg: cfg, c: c}
}

// Stats returns the counters of the most recent Run.
func (g *GridSearch) Stats() saddle.Stats { return g.stats }

// Run searches [lower, upper] with Subdivisions segments per axis and
// MaxLevel refinements. It returns nil and +Inf when the box, the
// configuration or the constraint leaves nothing to search.
func (g *GridSearch) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	objective := saddle.ObjectiveFunc(func(_, x grid.Vector) float64 {
		return eval(x.Values())
	})
	solver, err := saddle.NewSolver(objective, g.cfg)
	if err != nil {
		slog.Error("Grid search misconfigured", "error", err)
		return nil, math.Inf(1)
	}

	low, err := grid.NewVector(lower[:dim])
	if err != nil {
		slog.Error("Invalid lower bound", "error", err)
		return nil, math.Inf(1)
	}
	high, err := grid.NewVector(upper[:dim])
	if err != nil {
		slog.Error("Invalid upper bound", "error", err)
		return nil, math.Inf(1)
	}
	segments := make([]int, dim)
	for i := range segments {
		segments[i] = g.cfg.Subdivisions
	}
	box, err := grid.NewGrid(low, high, segments, g.c)
	if err != nil {
		slog.Error("Invalid search box", "error", err)
		return nil, math.Inf(1)
	}

	best, err := solver.Optimize(grid.MustVector(0), box, saddle.Minimize, saddle.Beta, nil)
	g.stats = solver.Stats()
	if err != nil {
		slog.Error("Grid search failed", "error", err)
		return nil, math.Inf(1)
	}
	return best.Beta().Values(), best.Value
}
