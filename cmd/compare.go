package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/opt"
	"github.com/cwbudde/saddlegrid/internal/payoff"
	"github.com/cwbudde/saddlegrid/internal/saddle"
)

var (
	compareProblem string
	fixedFlag      string
	mayflyIters    int
	mayflyPop      int
	mayflySeed     int64
	penalty        float64
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare grid refinement with Mayfly on one best response",
	Long: `Fixes the outer argument of a problem and searches the inner argument's
best response twice: once with adaptive grid refinement restricted to the
constraint, once with the Mayfly swarm optimizer, which sees the constraint
only as a penalty. Prints value, point and evaluation count of both.`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareProblem, "problem", "", "Problem name (required)")
	compareCmd.Flags().StringVar(&fixedFlag, "fix", "", "Comma-separated outer argument (default: 1/(n+1) in every coordinate)")
	addSolverFlags(compareCmd, saddle.DefaultConfig())
	compareCmd.Flags().IntVar(&mayflyIters, "iters", 100, "Mayfly iterations")
	compareCmd.Flags().IntVar(&mayflyPop, "pop", 30, "Mayfly population size")
	compareCmd.Flags().Int64Var(&mayflySeed, "seed", 42, "Mayfly random seed")
	compareCmd.Flags().Float64Var(&penalty, "penalty", 1e3, "Cost added to points that violate the constraint")

	compareCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(compareCmd)
}

// parsePoint reads a comma-separated vector of length n. An empty string
// yields the interior point with every coordinate 1/(n+1).
func parsePoint(s string, n int) (grid.Vector, error) {
	if s == "" {
		x := make([]float64, n)
		for i := range x {
			x[i] = 1 / float64(n+1)
		}
		return grid.NewVector(x)
	}
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return grid.Vector{}, fmt.Errorf("point has %d coordinates, want %d", len(fields), n)
	}
	x := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return grid.Vector{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		x[i] = v
	}
	return grid.NewVector(x)
}

type comparison struct {
	name        string
	point       []float64
	value       float64
	evaluations int64
	feasible    bool
	elapsed     time.Duration
}

func runCompare(cmd *cobra.Command, args []string) error {
	problem, err := payoff.Lookup(compareProblem)
	if err != nil {
		return err
	}
	outer, inner := problem.OuterArg, problem.OuterArg.Other()
	dir := problem.Outer.Opposite()

	fixed, err := parsePoint(fixedFlag, problem.Dims[outer])
	if err != nil {
		return err
	}
	if c := problem.Constraints[outer]; c != nil && !c.Holds(fixed.Values()) {
		return fmt.Errorf("fixed %s %s violates its constraint", outer, fixed)
	}

	var evaluations atomic.Int64
	eval := func(x []float64) float64 {
		evaluations.Add(1)
		var ab [2]grid.Vector
		ab[outer] = fixed
		ab[inner] = grid.MustVector(x...)
		return problem.Objective.Evaluate(ab[saddle.Alpha], ab[saddle.Beta])
	}
	minimized := eval
	if dir == saddle.Maximize {
		minimized = opt.Negated(eval)
	}

	n := problem.Dims[inner]
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range upper {
		upper[i] = 1
	}
	c := problem.Constraints[inner]

	run := func(name string, o opt.Optimizer, f func([]float64) float64) comparison {
		evaluations.Store(0)
		start := time.Now()
		x, _ := o.Run(f, lower, upper, n)
		res := comparison{name: name, point: x, elapsed: time.Since(start), evaluations: evaluations.Load()}
		if x == nil {
			res.value = math.NaN()
			return res
		}
		res.value = eval(x)
		res.feasible = c == nil || c.Holds(x)
		return res
	}

	results := []comparison{
		run("grid", opt.NewGridSearch(solverConfigFromFlags(), c), minimized),
		run("mayfly", opt.NewMayfly(mayflyIters, mayflyPop, mayflySeed), opt.Penalized(minimized, c, penalty)),
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s best response of %s to %s = %s\n\n", problem.Name, dir, inner, outer, fixed)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPTIMIZER\tVALUE\tEVALS\tFEASIBLE\tELAPSED\tPOINT")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.9g\t%d\t%t\t%s\t%s\n",
			r.name, r.value, r.evaluations, r.feasible, r.elapsed.Round(time.Microsecond), formatPoint(r.point))
	}
	return w.Flush()
}
