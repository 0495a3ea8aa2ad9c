package store

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cwbudde/saddlegrid/internal/saddle"
)

// JobConfig describes a solve: which built-in problem and at what resolution.
// It is shared by the server's job API and persisted with every result so a
// job can be rerun.
type JobConfig struct {
	Problem string        `json:"problem"`
	Solver  saddle.Config `json:"solver"`
	// Outer ("min" or "max") and OuterArg ("alpha" or "beta") override the
	// problem's own search layout when set.
	Outer         string `json:"outer,omitempty"`
	OuterArg      string `json:"outerArg,omitempty"`
	CompressTrace bool   `json:"compressTrace,omitempty"`
}

// Upper bounds on the solver settings a job may request. The work of one
// search grows like Subdivisions^dims per level.
const (
	MaxSubdivisions   = 32
	MaxLevel          = 30
	MaxVicinityRadius = 8
	MaxWorkers        = 256
)

// Validate checks the problem name and the solver configuration.
func (c JobConfig) Validate() error {
	if c.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if err := c.Solver.Validate(); err != nil {
		return &ValidationError{Field: "Config.Solver", Reason: err.Error()}
	}
	limits := []struct {
		name  string
		value int
		max   int
	}{
		{"subdivisions", c.Solver.Subdivisions, MaxSubdivisions},
		{"maxLevel", c.Solver.MaxLevel, MaxLevel},
		{"vicinityRadius", c.Solver.VicinityRadius, MaxVicinityRadius},
		{"workers", c.Solver.Workers, MaxWorkers},
	}
	for _, l := range limits {
		if l.value > l.max {
			return &ValidationError{Field: "Config.Solver", Reason: fmt.Sprintf("%s %d exceeds %d", l.name, l.value, l.max)}
		}
	}
	if c.Outer != "" {
		if _, err := saddle.ParseDirection(c.Outer); err != nil {
			return &ValidationError{Field: "Config.Outer", Reason: err.Error()}
		}
	}
	if c.OuterArg != "" {
		if _, err := saddle.ParseArg(c.OuterArg); err != nil {
			return &ValidationError{Field: "Config.OuterArg", Reason: err.Error()}
		}
	}
	return nil
}

// Result is the outcome of one saddle-point search.
type Result struct {
	JobID string `json:"jobId"`

	// Alpha and Beta are the coordinates of the best candidate.
	Alpha []float64 `json:"alpha"`
	Beta  []float64 `json:"beta"`
	Value float64   `json:"value"`

	// Levels is the number of outer levels that completed.
	Levels int          `json:"levels"`
	Stats  saddle.Stats `json:"stats"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Config JobConfig `json:"config"`
}

// ResultInfo is the listing view of a Result.
type ResultInfo struct {
	JobID       string        `json:"jobId"`
	Problem     string        `json:"problem"`
	Value       float64       `json:"value"`
	Levels      int           `json:"levels"`
	Evaluations int64         `json:"evaluations"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Duration    time.Duration `json:"duration"`
}

// NewResult converts a solver outcome into a persistable result finished now.
func NewResult(jobID string, best saddle.Candidate, stats saddle.Stats, levels int, startedAt time.Time, config JobConfig) *Result {
	return &Result{
		JobID:      jobID,
		Alpha:      best.Alpha().Values(),
		Beta:       best.Beta().Values(),
		Value:      best.Value,
		Levels:     levels,
		Stats:      stats,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Config:     config,
	}
}

// ToInfo converts a full Result to its listing metadata.
func (r *Result) ToInfo() ResultInfo {
	return ResultInfo{
		JobID:       r.JobID,
		Problem:     r.Config.Problem,
		Value:       r.Value,
		Levels:      r.Levels,
		Evaluations: r.Stats.Evaluations,
		FinishedAt:  r.FinishedAt,
		Duration:    r.FinishedAt.Sub(r.StartedAt),
	}
}

// Validate checks that the result is complete and consistent.
func (r *Result) Validate() error {
	if r.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(r.Alpha) == 0 {
		return &ValidationError{Field: "Alpha", Reason: "cannot be empty"}
	}
	if len(r.Beta) == 0 {
		return &ValidationError{Field: "Beta", Reason: "cannot be empty"}
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return &ValidationError{Field: "Value", Reason: "must be finite"}
	}
	if r.Levels < 1 {
		return &ValidationError{Field: "Levels", Reason: "must be positive"}
	}
	if r.Levels > r.Config.Solver.MaxLevel+1 {
		return &ValidationError{
			Field:  "Levels",
			Reason: fmt.Sprintf("exceeds %d levels allowed by MaxLevel", r.Config.Solver.MaxLevel+1),
		}
	}
	if r.Stats.Evaluations < 0 || r.Stats.InnerSearches < 0 || r.Stats.PrunedSearches < 0 {
		return &ValidationError{Field: "Stats", Reason: "counters cannot be negative"}
	}
	if r.Stats.PrunedSearches > r.Stats.InnerSearches {
		return &ValidationError{Field: "Stats.PrunedSearches", Reason: "cannot exceed InnerSearches"}
	}
	if r.StartedAt.IsZero() {
		return &ValidationError{Field: "StartedAt", Reason: "cannot be zero"}
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return &ValidationError{Field: "FinishedAt", Reason: "cannot precede StartedAt"}
	}
	return r.Config.Validate()
}

// ValidationError represents a result validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// Reproduces checks that other, typically a rerun of r's config, found the
// same problem, point and value. The solver is deterministic, so any
// difference means the configuration or the code changed.
func (r *Result) Reproduces(other *Result) error {
	if r.Config.Problem != other.Config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: r.Config.Problem,
			Actual:   other.Config.Problem,
		}
	}
	if !slices.Equal(r.Alpha, other.Alpha) {
		return &CompatibilityError{
			Field:    "Alpha",
			Expected: fmt.Sprint(r.Alpha),
			Actual:   fmt.Sprint(other.Alpha),
		}
	}
	if !slices.Equal(r.Beta, other.Beta) {
		return &CompatibilityError{
			Field:    "Beta",
			Expected: fmt.Sprint(r.Beta),
			Actual:   fmt.Sprint(other.Beta),
		}
	}
	if r.Value != other.Value {
		return &CompatibilityError{
			Field:    "Value",
			Expected: fmt.Sprintf("%g", r.Value),
			Actual:   fmt.Sprintf("%g", other.Value),
		}
	}
	return nil
}

// CompatibilityError reports a field that differs between two results.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
