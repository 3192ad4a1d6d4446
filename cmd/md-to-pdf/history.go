package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/book-expert/md-to-pdf-service/internal/history"
	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversion runs",
	Long: `History lists recent batch runs from the local ledger, newest first,
with the per-document outcomes recorded for each run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistory(cmd.Context())
	},
}

func init() {
	historyCmd.Flags().IntVar(
		&historyLimit,
		"limit",
		10,
		"Maximum number of runs to show.",
	)

	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context) error {
	projectRoot, cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	store, openErr := history.New(historyPath(cfg, projectRoot))
	if openErr != nil {
		return fmt.Errorf("could not open conversion history: %w", openErr)
	}

	defer func() {
		closeErr := store.Close()
		if closeErr != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to close conversion history: %v\n",
				closeErr,
			)
		}
	}()

	runs, listErr := store.RecentRuns(ctx, historyLimit)
	if listErr != nil {
		return fmt.Errorf("could not list conversion runs: %w", listErr)
	}

	if len(runs) == 0 {
		fmt.Println("No conversion runs recorded yet.")

		return nil
	}

	for _, run := range runs {
		printRun(run)
	}

	return nil
}

func printRun(run history.Run) {
	fmt.Printf(
		"Run %d  %s  %d successful, %d failed\n",
		run.ID,
		run.StartedAt.Local().Format(time.DateTime),
		run.Succeeded,
		run.Failed,
	)

	for _, job := range run.Jobs {
		printJobRecord(job)
	}

	fmt.Println()
}

func printJobRecord(job history.JobRecord) {
	if job.Status == string(mdrender.StatusSucceeded) {
		fmt.Printf("  ✓ %s (%d bytes)\n", job.Output, job.OutputBytes)

		return
	}

	fmt.Printf("  ✗ %s: %s\n", job.Output, job.Detail)
}
