package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/book-expert/logger"

	"github.com/book-expert/md-to-pdf-service/internal/history"
	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

var convertFlags flags

var convertCmd = &cobra.Command{
	Use:   "convert [source.md ...]",
	Short: "Convert Markdown documents to PDF",
	Long: `Convert runs the full pipeline for each job: pandoc generates a
self-contained HTML intermediate, the configured engine renders it to PDF, and
the intermediate is removed. Failures are tallied and reported in the closing
summary; they do not abort the batch or change the exit status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd.Context(), args)
	},
}

func init() {
	convertCmd.Flags().StringVar(
		&convertFlags.workDir,
		"work-dir",
		"",
		"Directory the job paths are resolved against.",
	)
	convertCmd.Flags().StringVar(
		&convertFlags.css,
		"css",
		"",
		"Stylesheet reference passed to the HTML conversion step.",
	)
	convertCmd.Flags().StringVar(
		&convertFlags.title,
		"title",
		"",
		"Document title metadata (front matter overrides it per document).",
	)
	convertCmd.Flags().StringVar(
		&convertFlags.author,
		"author",
		"",
		"Document author metadata (front matter overrides it per document).",
	)
	convertCmd.Flags().StringVar(
		&convertFlags.engine,
		"engine",
		"",
		"PDF engine: weasyprint or wkhtmltopdf.",
	)

	rootCmd.AddCommand(convertCmd)
}

// runConvert assembles the job list and options, then runs the batch.
func runConvert(ctx context.Context, args []string) error {
	projectRoot, cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	jobs := resolveJobs(cfg, args)
	options := mergeConfigAndFlags(cfg, convertFlags, projectRoot, jobs)

	return convertWithLogger(ctx, &options, cfg)
}

// convertWithLogger sets up the logger, runs the processor, and records the run.
// Per-job failures surface in the summary, not in the returned error, so the
// process exits zero unless the configuration itself is broken.
func convertWithLogger(
	ctx context.Context,
	options *mdrender.Options,
	cfg *config,
) error {
	log, err := setupLogger(options.ProjectRoot, cfg.LogsDir.MDToPDF)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		cerr := log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to close logger: %v\n",
				cerr,
			)
		}
	}()

	processor := mdrender.NewProcessor(options, log)

	startedAt := time.Now()

	results, procErr := processor.Process(ctx)
	if procErr != nil {
		return fmt.Errorf("markdown conversion failed: %w", procErr)
	}

	recordRunHistory(ctx, cfg, options.ProjectRoot, startedAt, results, log)

	return nil
}

// recordRunHistory appends the batch outcome to the local history ledger.
// The ledger is informational, so persistence problems only warn.
func recordRunHistory(
	ctx context.Context,
	cfg *config,
	projectRoot string,
	startedAt time.Time,
	results []mdrender.Result,
	log *logger.Logger,
) {
	store, openErr := history.New(historyPath(cfg, projectRoot))
	if openErr != nil {
		log.Warn("Could not open conversion history: %v", openErr)

		return
	}

	defer func() {
		closeErr := store.Close()
		if closeErr != nil {
			log.Warn("Could not close conversion history: %v", closeErr)
		}
	}()

	_, recordErr := store.RecordRun(ctx, startedAt, time.Now(), results)
	if recordErr != nil {
		log.Warn("Could not record conversion run: %v", recordErr)
	}
}
