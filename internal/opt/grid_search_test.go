package opt

import (
	"math"
	"testing"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/saddle"
)

func TestGridSearchOnShiftedSphere(t *testing.T) {
	gs := NewGridSearch(saddle.DefaultConfig(), nil)

	best, cost := gs.Run(shiftedSphere, []float64{0, 0}, []float64{1, 1}, 2)

	if len(best) != 2 {
		t.Fatalf("Expected 2 parameters, got %d", len(best))
	}
	for i, v := range best {
		if math.Abs(v-0.3) > 0.5/81 {
			t.Errorf("Parameter %d = %f, expected near 0.3", i, v)
		}
	}
	if cost > 1e-4 {
		t.Errorf("Expected cost near 0, got %g", cost)
	}
	if gs.Stats().Evaluations == 0 {
		t.Error("Expected evaluations to be counted")
	}
}

func TestGridSearchRespectsConstraint(t *testing.T) {
	c, err := grid.SparseSimplex([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	// Unconstrained minimum (1, 1) is infeasible; the best feasible point
	// lies on x0 + x1 = 1.
	far := func(x []float64) float64 {
		return (x[0]-1)*(x[0]-1) + (x[1]-1)*(x[1]-1)
	}

	best, cost := NewGridSearch(saddle.DefaultConfig(), c).Run(far, []float64{0, 0}, []float64{1, 1}, 2)

	if !c.Holds(best) {
		t.Fatalf("Result %v violates %s", best, c)
	}
	if math.Abs(cost-0.5) > 0.01 {
		t.Errorf("Expected cost near 0.5, got %f", cost)
	}
}

func TestGridSearchInvalidBox(t *testing.T) {
	best, cost := NewGridSearch(saddle.DefaultConfig(), nil).Run(sphere, []float64{1}, []float64{0}, 1)
	if best != nil || !math.IsInf(cost, 1) {
		t.Errorf("Expected (nil, +Inf) for an empty box, got (%v, %f)", best, cost)
	}
}

func TestGridSearchInvalidConfig(t *testing.T) {
	cfg := saddle.DefaultConfig()
	cfg.Subdivisions = 1
	best, cost := NewGridSearch(cfg, nil).Run(sphere, []float64{0}, []float64{1}, 1)
	if best != nil || !math.IsInf(cost, 1) {
		t.Errorf("Expected (nil, +Inf) for an invalid config, got (%v, %f)", best, cost)
	}
}

func TestPenalized(t *testing.T) {
	c, err := grid.SparseSimplex([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	f := Penalized(sphere, c, 100)

	if got := f([]float64{0.5, 0.5}); got != 0.5 {
		t.Errorf("Feasible point: got %f, want 0.5", got)
	}
	if got := f([]float64{1, 1}); got != 102 {
		t.Errorf("Infeasible point: got %f, want 102", got)
	}
	if got := Penalized(sphere, nil, 100)([]float64{1, 1}); got != 2 {
		t.Errorf("Nil constraint: got %f, want 2", got)
	}
}

func TestPenalizedMayflyStaysFeasible(t *testing.T) {
	c, err := grid.SparseSimplex([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	maxSum := Negated(func(x []float64) float64 { return x[0] + 2*x[1] })

	best, cost := NewMayfly(100, 20, 1).Run(Penalized(maxSum, c, 10), []float64{0, 0}, []float64{1, 1}, 2)

	if !c.Holds(best) {
		t.Fatalf("Result %v violates %s", best, c)
	}
	if cost > -1.5 {
		t.Errorf("Expected cost near -2, got %f", cost)
	}
}
