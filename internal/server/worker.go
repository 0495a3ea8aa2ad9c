package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/saddlegrid/internal/grid"
	"github.com/cwbudde/saddlegrid/internal/payoff"
	"github.com/cwbudde/saddlegrid/internal/saddle"
	"github.com/cwbudde/saddlegrid/internal/store"
)

// lookupProblem resolves a job's problem name.
var lookupProblem = payoff.Lookup

// runJob solves a job's problem in the calling goroutine, publishing the
// best candidate after every outer level. If resultStore is not nil, the
// result and the level trace are persisted.
func runJob(ctx context.Context, jm *JobManager, resultStore *store.FSStore, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	problem, err := lookupProblem(job.Config.Problem)
	if err == nil {
		problem, err = problem.WithOverrides(job.Config.Outer, job.Config.OuterArg)
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	solver, err := saddle.NewSolver(cancellable(ctx, problem.Objective), job.Config.Solver)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	slog.Info("Starting job",
		"job_id", jobID,
		"problem", problem.Name,
		"dims", problem.Dims,
		"subdivisions", job.Config.Solver.Subdivisions,
		"max_level", job.Config.Solver.MaxLevel,
	)

	var trace *store.TraceWriter
	if resultStore != nil {
		trace, err = store.NewTraceWriter(resultStore.BaseDir(), jobID, job.Config.CompressTrace)
		if err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
			}
		}()
	}

	start := time.Now()
	solver.Observe(func(rep saddle.LevelReport) {
		recordLevel(jm, trace, jobID, rep)
	})

	best, err := solver.FindSaddlePoint(problem.Dims, problem.Constraints, problem.Outer, problem.OuterArg)
	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	stats := solver.Stats()
	levels := job.Config.Solver.MaxLevel + 1
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Alpha = best.Alpha().Values()
		j.Beta = best.Beta().Values()
		j.Value = best.Value
		j.Level = levels
		j.Stats = stats
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	elapsed := endTime.Sub(start)
	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"value", best.Value,
		"alpha", best.Alpha().String(),
		"beta", best.Beta().String(),
		"evaluations", stats.Evaluations,
		"pruned", stats.PrunedSearches,
	)

	if resultStore != nil {
		result := store.NewResult(jobID, best, stats, levels, job.StartTime, job.Config)
		if err := resultStore.SaveResult(jobID, result); err != nil {
			// The job itself succeeded; only persistence failed.
			slog.Error("Failed to save result", "job_id", jobID, "error", err)
		}
	}

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(eventFromJob(final))
	return nil
}

// recordLevel publishes one outer level: job progress, trace line and event.
func recordLevel(jm *JobManager, trace *store.TraceWriter, jobID string, rep saddle.LevelReport) {
	entry := store.TraceEntry{
		Level:          rep.Level,
		Value:          rep.Best.Value,
		Alpha:          rep.Best.Alpha().Values(),
		Beta:           rep.Best.Beta().Values(),
		Evaluations:    rep.Stats.Evaluations,
		PrunedSearches: rep.Stats.PrunedSearches,
		Points:         rep.Points,
		Timestamp:      time.Now(),
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.Alpha = entry.Alpha
		j.Beta = entry.Beta
		j.Value = entry.Value
		j.Level = rep.Level + 1
		j.Stats = rep.Stats
		j.trace = append(j.trace, entry)
	})

	if trace != nil {
		if err := trace.Write(entry); err != nil {
			slog.Warn("Failed to write trace entry", "job_id", jobID, "level", rep.Level, "error", err)
		} else if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
	}

	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFromJob(job))
	}
}

// cancellable makes a cancelled context surface inside the solver: once ctx
// is done every evaluation returns NaN, which aborts the search with
// saddle.ErrInvalidValue.
func cancellable(ctx context.Context, f saddle.Objective) saddle.Objective {
	return saddle.ObjectiveFunc(func(alpha, beta grid.Vector) float64 {
		if ctx.Err() != nil {
			return math.NaN()
		}
		return f.Evaluate(alpha, beta)
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFromJob(job))
	}
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFromJob(job))
	}
}
