package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/saddlegrid/internal/saddle"
	"github.com/cwbudde/saddlegrid/internal/server"
)

var (
	serverURL string
	cancelJob bool
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.
With --cancel the job is cancelled first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	statusCmd.Flags().BoolVar(&cancelJob, "cancel", false, "Cancel the job before showing its status")
	rootCmd.AddCommand(statusCmd)
}

type jobStatus struct {
	ID             string           `json:"id"`
	State          server.JobState  `json:"state"`
	Config         server.JobConfig `json:"config"`
	Alpha          []float64        `json:"alpha"`
	Beta           []float64        `json:"beta"`
	Value          float64          `json:"value"`
	Level          int              `json:"level"`
	Levels         int              `json:"levels"`
	Stats          saddle.Stats     `json:"stats"`
	Elapsed        float64          `json:"elapsed"`
	EvalsPerSecond float64          `json:"evalsPerSecond"`
	Error          string           `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if cancelJob {
			return fmt.Errorf("--cancel needs a job id")
		}
		return listJobs(out, base+"/api/v1/jobs")
	}

	jobID := args[0]
	if cancelJob {
		if err := requestCancel(base+"/api/v1/jobs/"+jobID+"/cancel", jobID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Cancellation requested for %s\n\n", jobID)
	}
	return getJobStatus(out, base+"/api/v1/jobs/"+jobID+"/status", jobID)
}

func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func requestCancel(url, jobID string) error {
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("job not found: %s", jobID)
	case http.StatusConflict:
		return fmt.Errorf("job %s already finished", jobID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Problem: %s\n", job.Config.Problem)
		fmt.Fprintf(out, "  Level: %d/%d\n", job.Level, job.Config.Solver.MaxLevel+1)
		if job.Level > 0 {
			fmt.Fprintf(out, "  Value: %.9g\n", job.Value)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintln(out)

	cfg := status.Config.Solver
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Problem: %s\n", status.Config.Problem)
	fmt.Fprintf(out, "  Subdivisions: %d\n", cfg.Subdivisions)
	fmt.Fprintf(out, "  Max Level: %d\n", cfg.MaxLevel)
	fmt.Fprintf(out, "  Radius: %d\n", cfg.VicinityRadius)
	fmt.Fprintf(out, "  Workers: %d\n", cfg.Workers)
	fmt.Fprintf(out, "  Pruning: %t\n", !cfg.DisablePruning)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Level: %d/%d\n", status.Level, status.Levels)
	if status.Level > 0 {
		fmt.Fprintf(out, "  Value: %.9g\n", status.Value)
		fmt.Fprintf(out, "  Alpha: %s\n", formatPoint(status.Alpha))
		fmt.Fprintf(out, "  Beta: %s\n", formatPoint(status.Beta))
	}
	fmt.Fprintf(out, "  Evaluations: %d\n", status.Stats.Evaluations)
	fmt.Fprintf(out, "  Inner Searches: %d (%d pruned)\n", status.Stats.InnerSearches, status.Stats.PrunedSearches)

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.EvalsPerSecond > 0 {
		fmt.Fprintf(out, "  Throughput: %.0f evals/sec\n", status.EvalsPerSecond)
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
