package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/cwbudde/saddlegrid/internal/server"
	"github.com/cwbudde/saddlegrid/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	noPersist    bool
	submitRate   float64
	submitBurst  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Serves the job API under /api/v1. Jobs solve built-in problems in the
background; progress is available by polling /status or as a server-sent
event stream on /stream. Results and traces are persisted to the data
directory unless --no-persist is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Base directory for results")
	serveCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Keep results in memory only")
	serveCmd.Flags().Float64Var(&submitRate, "submit-rate", float64(server.DefaultSubmitRate), "Sustained job submissions per second")
	serveCmd.Flags().IntVar(&submitBurst, "submit-burst", server.DefaultSubmitBurst, "Job submission burst")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if submitRate <= 0 || submitBurst < 1 {
		return fmt.Errorf("submit rate must be positive and burst at least 1")
	}

	var resultStore *store.FSStore
	if !noPersist {
		var err error
		resultStore, err = store.NewFSStore(serveDataDir)
		if err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
	}

	srv := server.NewServer(serveAddr, resultStore, server.WithSubmitRate(rate.Limit(submitRate), submitBurst))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
