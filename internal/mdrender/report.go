// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender

import (
	"fmt"
	"strings"
)

// Status classifies the outcome of one conversion job.
type Status string

// Per-job outcomes recorded in a Result.
const (
	StatusSucceeded        Status = "succeeded"
	StatusSourceMissing    Status = "source_missing"
	StatusConversionFailed Status = "conversion_failed"
)

// Result records the outcome of a single conversion job. Reason is empty for
// succeeded jobs; OutputBytes is the size of the produced PDF, zero otherwise.
type Result struct {
	Job         Job
	Status      Status
	Reason      string
	OutputBytes int64
}

// Summary aggregates per-job outcomes for a whole batch run.
type Summary struct {
	Succeeded int
	Failed    int
}

// Summarize tallies results into a Summary. Every non-succeeded outcome counts as a
// failure.
func Summarize(results []Result) Summary {
	summary := Summary{Succeeded: 0, Failed: 0}

	for _, result := range results {
		if result.Status == StatusSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	return summary
}

const (
	bannerWidth    = 60
	runHeaderTitle = "Markdown to PDF Conversion"
)

func banner() string {
	return strings.Repeat("=", bannerWidth)
}

// writeRunHeader prints the banner that opens a batch run.
func (processor *Processor) writeRunHeader() {
	out := processor.config.SummaryOutput

	fmt.Fprintln(out, banner())
	fmt.Fprintln(out, runHeaderTitle)
	fmt.Fprintln(out, banner())
	fmt.Fprintln(out)
}

// writeSummary prints the success/failure tally between closing banners.
func (processor *Processor) writeSummary(summary Summary) {
	out := processor.config.SummaryOutput

	fmt.Fprintln(out, banner())
	fmt.Fprintf(out, "Summary: %d successful, %d failed\n", summary.Succeeded, summary.Failed)
	fmt.Fprintln(out, banner())
}

// writeArtifactListing prints each configured output with its current size on disk.
// The listing reflects the filesystem at reporting time, so artifacts left over from
// earlier runs still show up.
func (processor *Processor) writeArtifactListing() {
	out := processor.config.SummaryOutput

	fmt.Fprintln(out, "\nGenerated PDF files:")

	for _, job := range processor.config.Jobs {
		_, pdfPath := processor.resolveJobPaths(job)

		sizeMB, exists := fileSizeMB(pdfPath)
		if exists {
			fmt.Fprintf(out, "  ✓ %s (%.2f MB)\n", job.Output, sizeMB)
		} else {
			fmt.Fprintf(out, "  ✗ %s (NOT FOUND)\n", job.Output)
		}
	}
}
