package server

import (
	"context"
	"sync"
	"testing"

	"github.com/cwbudde/saddlegrid/internal/saddle"
	"github.com/cwbudde/saddlegrid/internal/store"
)

func testConfig(problem string) JobConfig {
	cfg := saddle.DefaultConfig()
	cfg.MaxLevel = 2
	return JobConfig{Problem: problem, Solver: cfg}
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testConfig("pennies"))

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.Problem != "pennies" {
		t.Errorf("Config not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig("pennies"))

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Error("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_SnapshotIsolation(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig("rps"))
	jm.UpdateJob(job.ID, func(j *Job) { j.Alpha = []float64{0.1, 0.2} })

	snap, _ := jm.GetJob(job.ID)
	snap.Alpha[0] = 99

	again, _ := jm.GetJob(job.ID)
	if again.Alpha[0] != 0.1 {
		t.Errorf("Mutating a snapshot changed the job: %v", again.Alpha)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(testConfig("pennies"))
	jm.CreateJob(testConfig("rps"))

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig("pennies"))

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Level = 2
		j.Value = 0.125
		j.trace = append(j.trace, store.TraceEntry{Level: 0}, store.TraceEntry{Level: 1})
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Level != 2 || updated.Value != 0.125 {
		t.Errorf("Progress should be updated, got level %d value %f", updated.Level, updated.Value)
	}
	if running := jm.GetRunningJobs(); len(running) != 1 {
		t.Errorf("Expected 1 running job, got %d", len(running))
	}
	if trace, _ := jm.Trace(job.ID); len(trace) != 2 {
		t.Errorf("Expected 2 trace entries, got %d", len(trace))
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig("pennies"))

	if jm.CancelJob(job.ID) {
		t.Error("Job without a worker cannot be cancelled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jm.setCancel(job.ID, cancel)
	if !jm.CancelJob(job.ID) {
		t.Error("Pending job with a worker should be cancellable")
	}
	if ctx.Err() == nil {
		t.Error("Context should be cancelled")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	if jm.CancelJob(job.ID) {
		t.Error("Completed job cannot be cancelled")
	}
	if jm.CancelJob("nonexistent") {
		t.Error("Nonexistent job cannot be cancelled")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testConfig("pennies"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Level = i
				j.Alpha = []float64{float64(i)}
			})
		}()
		go func() {
			defer wg.Done()
			jm.GetJob(job.ID)
			jm.ListJobs()
		}()
	}
	wg.Wait()

	if _, exists := jm.GetJob(job.ID); !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}
