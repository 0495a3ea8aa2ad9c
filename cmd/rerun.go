package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/saddlegrid/internal/store"
)

var (
	rerunDataDir string
	rerunSave    bool
)

var rerunCmd = &cobra.Command{
	Use:   "rerun [job-id]",
	Short: "Rerun a saved result's configuration and check it reproduces",
	Long: `Loads a saved result, runs its problem again with the same solver
configuration and compares the new best candidate with the stored one.
The search is deterministic, so any difference is reported as an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runRerun,
}

func init() {
	rerunCmd.Flags().StringVar(&rerunDataDir, "data-dir", "./data", "Base directory for results")
	rerunCmd.Flags().BoolVar(&rerunSave, "save", false, "Persist the rerun as a new result")
	rootCmd.AddCommand(rerunCmd)
}

func runRerun(cmd *cobra.Command, args []string) error {
	resultStore, err := store.NewFSStore(rerunDataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	original, err := resultStore.LoadResult(args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no saved result for job %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load result: %w", err)
	}

	var saveTo *store.FSStore
	if rerunSave {
		saveTo = resultStore
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rerun, err := executeJob(ctx, uuid.New().String(), original.Config, saveTo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printResult(out, rerun, false); err != nil {
		return err
	}
	if err := original.Reproduces(rerun); err != nil {
		return fmt.Errorf("rerun of %s does not reproduce: %w", original.JobID, err)
	}
	fmt.Fprintf(out, "\nReproduces %s\n", original.JobID)
	return nil
}
