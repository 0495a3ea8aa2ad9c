package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/payoff"
	"github.com/cwbudde/saddlegrid/internal/saddle"
	"github.com/cwbudde/saddlegrid/internal/store"
)

var (
	problemName     string
	subdivisions    int
	maxLevel        int
	vicinityRadius  int
	workers         int
	checkInvariants bool
	noPrune         bool
	outerFlag       string
	outerArgFlag    string
	saveResult      bool
	solveDataDir    string
	compressTrace   bool
	jsonOutput      bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Find the saddle point of a built-in problem",
	Long: `Runs the nested grid search on one of the built-in problems and prints
the best candidate. With --save the result and its per-level trace are
written to the data directory and can be listed with "results list".`,
	RunE: runSolve,
}

func init() {
	defaults := saddle.DefaultConfig()
	solveCmd.Flags().StringVar(&problemName, "problem", "", "Problem name, see \"problems\" (required)")
	addSolverFlags(solveCmd, defaults)
	solveCmd.Flags().StringVar(&outerFlag, "outer", "", "Override the outer direction: min or max")
	solveCmd.Flags().StringVar(&outerArgFlag, "outer-arg", "", "Override the outer argument: alpha or beta")
	solveCmd.Flags().BoolVar(&saveResult, "save", false, "Persist the result and trace")
	solveCmd.Flags().StringVar(&solveDataDir, "data-dir", "./data", "Base directory for results")
	solveCmd.Flags().BoolVar(&compressTrace, "compress-trace", false, "Write the trace zstd-compressed")
	solveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	solveCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(solveCmd)
}

func addSolverFlags(cmd *cobra.Command, defaults saddle.Config) {
	cmd.Flags().IntVar(&subdivisions, "subdivisions", defaults.Subdivisions, "Segments per axis of the first grid and per refined cell")
	cmd.Flags().IntVar(&maxLevel, "max-level", defaults.MaxLevel, "Number of refinement levels")
	cmd.Flags().IntVar(&vicinityRadius, "radius", defaults.VicinityRadius, "Refinement window half-width in parent cells")
	cmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Concurrent evaluations per inner level")
	cmd.Flags().BoolVar(&checkInvariants, "check-invariants", defaults.CheckInvariants, "Verify every grid point against the constraint")
	cmd.Flags().BoolVar(&noPrune, "no-prune", defaults.DisablePruning, "Run every inner search to completion")
}

func solverConfigFromFlags() saddle.Config {
	return saddle.Config{
		Subdivisions:    subdivisions,
		MaxLevel:        maxLevel,
		VicinityRadius:  vicinityRadius,
		Workers:         workers,
		CheckInvariants: checkInvariants,
		DisablePruning:  noPrune,
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	config := store.JobConfig{
		Problem:       problemName,
		Solver:        solverConfigFromFlags(),
		Outer:         outerFlag,
		OuterArg:      outerArgFlag,
		CompressTrace: compressTrace,
	}

	var resultStore *store.FSStore
	if saveResult {
		var err error
		resultStore, err = store.NewFSStore(solveDataDir)
		if err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := executeJob(ctx, uuid.New().String(), config, resultStore)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result, jsonOutput)
}

// executeJob solves config's problem and returns the result. If resultStore
// is not nil the result and the level trace are persisted under jobID.
func executeJob(ctx context.Context, jobID string, config store.JobConfig, resultStore *store.FSStore) (*store.Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	problem, err := payoff.Lookup(config.Problem)
	if err != nil {
		return nil, err
	}
	problem, err = problem.WithOverrides(config.Outer, config.OuterArg)
	if err != nil {
		return nil, err
	}

	solver, err := saddle.NewSolver(interruptible(ctx, problem.Objective), config.Solver)
	if err != nil {
		return nil, err
	}

	var trace *store.TraceWriter
	if resultStore != nil {
		trace, err = store.NewTraceWriter(resultStore.BaseDir(), jobID, config.CompressTrace)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace: %w", err)
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
			}
		}()
	}

	slog.Info("Starting search",
		"job_id", jobID,
		"problem", problem.Name,
		"dims", problem.Dims,
		"outer", problem.Outer.String(),
		"outer_arg", problem.OuterArg.String(),
		"subdivisions", config.Solver.Subdivisions,
		"max_level", config.Solver.MaxLevel,
	)

	solver.Observe(func(rep saddle.LevelReport) {
		slog.Info("Level complete",
			"level", rep.Level,
			"points", rep.Points,
			"value", rep.Best.Value,
			"evaluations", rep.Stats.Evaluations,
			"pruned", rep.Stats.PrunedSearches,
		)
		if trace == nil {
			return
		}
		err := trace.Write(store.TraceEntry{
			Level:          rep.Level,
			Value:          rep.Best.Value,
			Alpha:          rep.Best.Alpha().Values(),
			Beta:           rep.Best.Beta().Values(),
			Evaluations:    rep.Stats.Evaluations,
			PrunedSearches: rep.Stats.PrunedSearches,
			Points:         rep.Points,
			Timestamp:      time.Now(),
		})
		if err != nil {
			slog.Warn("Failed to write trace entry", "level", rep.Level, "error", err)
		}
	})

	start := time.Now()
	best, err := solver.FindSaddlePoint(problem.Dims, problem.Constraints, problem.Outer, problem.OuterArg)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("search interrupted: %w", ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	stats := solver.Stats()
	result := store.NewResult(jobID, best, stats, config.Solver.MaxLevel+1, start, config)
	slog.Info("Search complete",
		"job_id", jobID,
		"elapsed", result.FinishedAt.Sub(start),
		"value", best.Value,
		"evaluations", stats.Evaluations,
		"inner_searches", stats.InnerSearches,
		"pruned", stats.PrunedSearches,
	)

	if resultStore != nil {
		if err := resultStore.SaveResult(jobID, result); err != nil {
			return nil, fmt.Errorf("failed to save result: %w", err)
		}
	}
	return result, nil
}

// interruptible returns NaN once ctx is done, which stops the solver.
func interruptible(ctx context.Context, f saddle.Objective) saddle.Objective {
	return saddle.ObjectiveFunc(func(alpha, beta grid.Vector) float64 {
		if ctx.Err() != nil {
			return math.NaN()
		}
		return f.Evaluate(alpha, beta)
	})
}

func printResult(w io.Writer, result *store.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "Job:      %s\n", result.JobID)
	fmt.Fprintf(w, "Problem:  %s\n", result.Config.Problem)
	fmt.Fprintf(w, "Value:    %.9g\n", result.Value)
	fmt.Fprintf(w, "Alpha:    %v\n", formatPoint(result.Alpha))
	fmt.Fprintf(w, "Beta:     %v\n", formatPoint(result.Beta))
	fmt.Fprintf(w, "Levels:   %d\n", result.Levels)
	fmt.Fprintf(w, "Evals:    %d (%d inner searches, %d pruned)\n",
		result.Stats.Evaluations, result.Stats.InnerSearches, result.Stats.PrunedSearches)
	fmt.Fprintf(w, "Elapsed:  %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return nil
}

func formatPoint(x []float64) string {
	v, err := grid.NewVector(x)
	if err != nil {
		return fmt.Sprint(x)
	}
	return v.String()
}
