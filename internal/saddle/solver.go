package saddle

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/saddlegrid/internal/grid"
)

// ErrInvalidValue is returned when the objective yields NaN.
var ErrInvalidValue = errors.New("saddle: objective returned NaN")

// Stats counts work done by a Solver since it was created.
type Stats struct {
	Evaluations    int64 `json:"evaluations"`
	InnerSearches  int64 `json:"innerSearches"`
	PrunedSearches int64 `json:"prunedSearches"`
}

// LevelReport describes the outer search after one refinement level.
type LevelReport struct {
	Level int
	Best  Candidate
	Grid  *grid.Grid
	// Points is the number of admissible outer points searched at this level.
	Points int
	Stats  Stats
}

// Solver runs grid searches over an Objective. It is not safe for concurrent
// use by multiple goroutines; create one Solver per search.
type Solver struct {
	f   Objective
	cfg Config

	evaluations atomic.Int64
	searches    atomic.Int64
	pruned      atomic.Int64

	observer func(LevelReport)
}

// NewSolver validates cfg and binds it to f.
func NewSolver(f Objective, cfg Config) (*Solver, error) {
	if f == nil {
		return nil, &ConfigError{Field: "Objective", Reason: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Solver{f: f, cfg: cfg}, nil
}

// Config returns the solver's configuration.
func (s *Solver) Config() Config { return s.cfg }

// Observe registers fn to be called after every outer level of FindSaddlePoint.
func (s *Solver) Observe(fn func(LevelReport)) { s.observer = fn }

// Stats returns the work counters.
func (s *Solver) Stats() Stats {
	return Stats{
		Evaluations:    s.evaluations.Load(),
		InnerSearches:  s.searches.Load(),
		PrunedSearches: s.pruned.Load(),
	}
}

// OptimizeOverOneVariable searches the argument `which` over [0,1]^dim,
// restricted by c, with the other argument held at fixed.
func (s *Solver) OptimizeOverOneVariable(fixed grid.Vector, c grid.Constraint, dim int, dir Direction, which Arg, bound *PruneBound) (Candidate, error) {
	g, err := grid.Cube(dim, s.cfg.Subdivisions, c)
	if err != nil {
		return Candidate{}, err
	}
	return s.Optimize(fixed, g, dir, which, bound)
}

// Optimize runs the single-argument refinement starting from g: MaxLevel+1
// levels, each enumerating the grid, keeping the best value seen so far and
// refining around it. A non-nil bound ends the search as soon as the running
// best satisfies bound.WillNotWin; the result is then marked Pruned.
func (s *Solver) Optimize(fixed grid.Vector, g *grid.Grid, dir Direction, which Arg, bound *PruneBound) (Candidate, error) {
	s.searches.Add(1)
	if s.cfg.DisablePruning {
		bound = nil
	}

	var best Candidate
	found := false
	for level := 0; level <= s.cfg.MaxLevel; level++ {
		points, err := s.levelPoints(g)
		if err != nil {
			return Candidate{}, err
		}
		if len(points) == 0 {
			return Candidate{}, fmt.Errorf("%w: %s", grid.ErrEmptyFeasibleRegion, g)
		}

		values, err := s.evaluateLevel(fixed, points, which)
		if err != nil {
			return Candidate{}, err
		}
		for i, x := range points {
			v, err := values(i)
			if err != nil {
				return Candidate{}, err
			}
			if !found || dir.Better(v, best.Value) {
				best = Candidate{Args: makeArgs(which, x, fixed), Value: v}
				found = true
			}
			if bound != nil && bound.WillNotWin(best.Value) {
				s.pruned.Add(1)
				best.Pruned = true
				slog.Debug("Inner search pruned", "level", level, "value", best.Value, "bound", bound.Value)
				return best, nil
			}
		}

		if level == s.cfg.MaxLevel {
			break
		}
		g, err = g.RefineAround(best.Args[which], s.cfg.Subdivisions, s.cfg.VicinityRadius)
		if err != nil {
			return Candidate{}, err
		}
	}
	return best, nil
}

// FindSaddlePoint searches dims[outerArg] in direction outer and, for every
// outer point, the other argument in the opposite direction. With outer =
// Minimize and outerArg = Alpha this approximates min_alpha max_beta f.
func (s *Solver) FindSaddlePoint(dims [2]int, constraints [2]grid.Constraint, outer Direction, outerArg Arg) (Candidate, error) {
	innerArg := outerArg.Other()
	innerDir := outer.Opposite()

	g, err := grid.Cube(dims[outerArg], s.cfg.Subdivisions, constraints[outerArg])
	if err != nil {
		return Candidate{}, err
	}
	// Fail on a bad inner domain before the first evaluation.
	if _, err := grid.Cube(dims[innerArg], s.cfg.Subdivisions, constraints[innerArg]); err != nil {
		return Candidate{}, err
	}

	var best Candidate
	found := false
	for level := 0; level <= s.cfg.MaxLevel; level++ {
		points, err := g.Enumerate()
		if err != nil {
			return Candidate{}, err
		}
		seen := 0
		for _, q := range points {
			seen++
			if err := s.checkPoint(g, q); err != nil {
				return Candidate{}, err
			}
			var bound *PruneBound
			if found {
				bound = &PruneBound{Value: best.Value, Direction: innerDir}
			}
			inner, err := s.OptimizeOverOneVariable(q, constraints[innerArg], dims[innerArg], innerDir, innerArg, bound)
			if err != nil {
				return Candidate{}, err
			}
			if inner.Pruned {
				continue
			}
			if !found || outer.Better(inner.Value, best.Value) {
				best = inner
				found = true
			}
		}
		if seen == 0 {
			return Candidate{}, fmt.Errorf("%w: %s", grid.ErrEmptyFeasibleRegion, g)
		}
		if err := s.checkCoverage(g, seen); err != nil {
			return Candidate{}, err
		}

		stats := s.Stats()
		slog.Debug("Outer level complete",
			"level", level,
			"points", seen,
			"value", best.Value,
			"evaluations", stats.Evaluations,
			"pruned", stats.PrunedSearches,
		)
		if s.observer != nil {
			s.observer(LevelReport{Level: level, Best: best, Grid: g, Points: seen, Stats: stats})
		}

		if level == s.cfg.MaxLevel {
			break
		}
		g, err = g.RefineAround(best.Args[outerArg], s.cfg.Subdivisions, s.cfg.VicinityRadius)
		if err != nil {
			return Candidate{}, err
		}
	}
	return best, nil
}

// levelPoints materializes one level's admissible points, checking each
// against the real-space constraint when invariants are on.
func (s *Solver) levelPoints(g *grid.Grid) ([]grid.Vector, error) {
	seq, err := g.Enumerate()
	if err != nil {
		return nil, err
	}
	var points []grid.Vector
	for _, x := range seq {
		if err := s.checkPoint(g, x); err != nil {
			return nil, err
		}
		points = append(points, x)
	}
	return points, nil
}

func (s *Solver) checkPoint(g *grid.Grid, x grid.Vector) error {
	if !s.cfg.CheckInvariants || g.Constraint() == nil {
		return nil
	}
	if !g.Constraint().Holds(x.Values()) {
		return fmt.Errorf("%w: %s fails %s on %s", grid.ErrInternalConsistency, x, g.Constraint(), g)
	}
	return nil
}

// checkCoverage verifies, when invariants are on, that an outer level visited
// every admissible lattice point exactly once.
func (s *Solver) checkCoverage(g *grid.Grid, seen int) error {
	if !s.cfg.CheckInvariants || g.Size() > math.MaxUint32 {
		return nil
	}
	bm, err := g.Admissible()
	if err != nil {
		return err
	}
	if n := bm.GetCardinality(); n != uint64(seen) {
		return fmt.Errorf("%w: visited %d points, %d admissible on %s", grid.ErrInternalConsistency, seen, n, g)
	}
	return nil
}

// evaluateLevel returns an accessor for the objective values of points. With
// one worker, values are computed on demand, so a pruned search stops paying
// for evaluations at once. With more workers, the whole level is evaluated up
// front and consumed in enumeration order, which keeps results identical.
func (s *Solver) evaluateLevel(fixed grid.Vector, points []grid.Vector, which Arg) (func(int) (float64, error), error) {
	if s.cfg.Workers <= 1 || len(points) < 2 {
		return func(i int) (float64, error) {
			return s.evaluate(makeArgs(which, points[i], fixed))
		}, nil
	}

	values := make([]float64, len(points))
	var eg errgroup.Group
	eg.SetLimit(s.cfg.Workers)
	for i, x := range points {
		eg.Go(func() error {
			v, err := s.evaluate(makeArgs(which, x, fixed))
			values[i] = v
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return func(i int) (float64, error) { return values[i], nil }, nil
}

func (s *Solver) evaluate(args [2]grid.Vector) (float64, error) {
	s.evaluations.Add(1)
	v := s.f.Evaluate(args[Alpha], args[Beta])
	if math.IsNaN(v) {
		return 0, fmt.Errorf("%w at alpha=%s beta=%s", ErrInvalidValue, args[Alpha], args[Beta])
	}
	return v, nil
}

func makeArgs(which Arg, x, fixed grid.Vector) [2]grid.Vector {
	var args [2]grid.Vector
	args[which] = x
	args[which.Other()] = fixed
	return args
}
