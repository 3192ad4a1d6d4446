// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/logger"

	"github.com/book-expert/md-to-pdf-service/internal/frontmatter"
)

var (
	// ErrNoJobs is returned when no conversion jobs are configured.
	ErrNoJobs = errors.New("at least one conversion job is required")
	// ErrJobSourceRequired is returned when a job has no Markdown source path.
	ErrJobSourceRequired = errors.New("job source path is required")
	// ErrJobOutputRequired is returned when a job has no PDF output path.
	ErrJobOutputRequired = errors.New("job output path is required")
	// ErrUnknownEngine is returned when the configured PDF engine is not recognized.
	ErrUnknownEngine = errors.New("unknown pdf engine")
	// ErrRendererNotInstalled is returned when the selected PDF renderer is missing.
	ErrRendererNotInstalled = errors.New("pdf renderer is not installed")
)

// Supported PDF engines.
const (
	// EngineWeasyPrint renders PDFs by shelling out to the weasyprint command.
	EngineWeasyPrint = "weasyprint"
	// EngineWKHTMLToPDF renders PDFs through the wkhtmltopdf library bindings.
	EngineWKHTMLToPDF = "wkhtmltopdf"
)

// Job is one Markdown-source-to-PDF-destination conversion task.
// Relative paths are resolved against the configured working directory.
type Job struct {
	Source string
	Output string
}

// Options holds all configurable parameters for a Processor.
// This struct is used to initialize a new Processor with user-defined settings.
type Options struct {
	SummaryOutput     io.Writer
	ProgressBarOutput io.Writer
	WorkDir           string
	CSSPath           string
	Title             string
	Author            string
	Engine            string
	ProjectRoot       string
	Jobs              []Job
}

// Processor encapsulates the logic for converting a batch of Markdown files.
type Processor struct {
	executor     CommandExecutor
	renderer     Renderer
	log          *logger.Logger
	config       Options
	verifierPath string
}

// NewProcessor creates and initializes a new Processor with the given options and logger.
// It sets sensible defaults for any zero-value fields in the Options struct.
func NewProcessor(opts *Options, log *logger.Logger) *Processor {
	applyDefaultOptions(opts)

	return &Processor{
		config:       *opts,
		renderer:     nil, // Resolved from the engine name on first use.
		log:          log,
		executor:     &defaultExecutor{}, // Use the real command executor by default.
		verifierPath: "",
	}
}

const (
	defaultEngine  = EngineWeasyPrint
	defaultCSSPath = "style.css"
	defaultWorkDir = "."
)

// applyDefaultOptions fills zero-value fields in Options with sensible defaults.
func applyDefaultOptions(opts *Options) {
	opts.Engine = defaultStringEmpty(opts.Engine, defaultEngine)
	opts.CSSPath = defaultStringEmpty(opts.CSSPath, defaultCSSPath)
	opts.WorkDir = defaultStringEmpty(opts.WorkDir, defaultWorkDir)
	opts.SummaryOutput = defaultWriterNil(opts.SummaryOutput, os.Stdout)
	opts.ProgressBarOutput = defaultWriterNil(opts.ProgressBarOutput, os.Stderr)
}

func defaultStringEmpty(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func defaultWriterNil(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}

	return w
}

// Process is the main entry point for running the configured batch of conversions.
// It validates the configuration, converts each job sequentially, and writes the
// summary report. Per-job failures are recorded in the returned results, not
// returned as an error; the error return covers configuration problems only.
func (processor *Processor) Process(ctx context.Context) ([]Result, error) {
	// Step 1: Validate the configuration before starting any work.
	err := processor.validateConfig()
	if err != nil {
		return nil, err
	}

	// Step 2: Prepare helper tooling used to verify produced PDFs.
	processor.prepareTools(ctx)

	// Step 3: Convert each configured job in list order.
	processor.log.Info("Found %d document(s) to convert.", len(processor.config.Jobs))
	processor.writeRunHeader()

	results := processor.processAllJobs(ctx)

	// Step 4: Report the outcome of the whole batch.
	processor.writeSummary(Summarize(results))
	processor.writeArtifactListing()

	return results, nil
}

// prepareTools ensures the PDF verification helper is available before processing.
// Verification is advisory, so failures here degrade to a warning instead of
// aborting the batch.
func (processor *Processor) prepareTools(ctx context.Context) {
	if processor.config.ProjectRoot == "" {
		processor.log.Warn("Project root not set; produced PDFs will not be verified.")

		return
	}

	binaryPath, buildErr := ensureVerifyPDFBinary(
		ctx,
		processor.config.ProjectRoot,
		processor.log,
	)
	if buildErr != nil {
		processor.log.Warn("Could not prepare PDF verification tool: %v", buildErr)

		return
	}

	processor.verifierPath = binaryPath
}

// validateConfig checks if the essential configuration options have been provided.
func (processor *Processor) validateConfig() error {
	if len(processor.config.Jobs) == 0 {
		return ErrNoJobs
	}

	for index, job := range processor.config.Jobs {
		if job.Source == "" {
			return fmt.Errorf("job %d: %w", index, ErrJobSourceRequired)
		}

		if job.Output == "" {
			return fmt.Errorf("job %d: %w", index, ErrJobOutputRequired)
		}
	}

	if !knownEngine(processor.config.Engine) {
		return fmt.Errorf("%w: %q", ErrUnknownEngine, processor.config.Engine)
	}

	return nil
}

func knownEngine(engine string) bool {
	return engine == EngineWeasyPrint || engine == EngineWKHTMLToPDF
}

// resolveRenderer returns the renderer for the configured engine, constructing it
// on first use. Tests may inject a fake renderer beforehand.
func (processor *Processor) resolveRenderer() (Renderer, error) {
	if processor.renderer != nil {
		return processor.renderer, nil
	}

	switch processor.config.Engine {
	case EngineWeasyPrint:
		processor.renderer = &weasyprintRenderer{executor: processor.executor}
	case EngineWKHTMLToPDF:
		processor.renderer = &wkhtmltopdfRenderer{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, processor.config.Engine)
	}

	return processor.renderer, nil
}

// processAllJobs iterates through the configured jobs and converts each one.
// It uses a progress bar to show the overall progress.
func (processor *Processor) processAllJobs(ctx context.Context) []Result {
	mainProgressBar := pb.New(len(processor.config.Jobs)).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{percent .}} {{rtime .}}`).
		SetWriter(processor.config.ProgressBarOutput).
		Start()
	defer mainProgressBar.Finish()

	results := make([]Result, 0, len(processor.config.Jobs))

	for _, job := range processor.config.Jobs {
		mainProgressBar.Increment()
		processor.log.Info("Converting %s to PDF...", job.Source)

		result := processor.processOneJob(ctx, job)
		if result.Status == StatusSucceeded {
			processor.log.Success("Successfully converted %s", job.Source)
		} else {
			processor.log.Error(
				"Failed to convert %s: %s",
				job.Source,
				result.Reason,
			)
			// Continue to the next job even if one fails.
		}

		results = append(results, result)
	}

	return results
}

// ConvertOne runs the conversion pipeline for a single job and reports its outcome.
// It is used by callers that manage their own job lists, such as the queue worker.
func (processor *Processor) ConvertOne(ctx context.Context, job Job) Result {
	processor.prepareTools(ctx)

	return processor.processOneJob(ctx, job)
}

// processOneJob handles the conversion of a single Markdown file.
func (processor *Processor) processOneJob(ctx context.Context, job Job) Result {
	sourcePath, pdfPath := processor.resolveJobPaths(job)

	// Step 1: The Markdown source must exist before any work is attempted.
	if !fileExists(sourcePath) {
		processor.log.Warn("File not found: %s", sourcePath)

		return Result{
			Job:         job,
			Status:      StatusSourceMissing,
			Reason:      fmt.Sprintf("source file not found: %s", sourcePath),
			OutputBytes: 0,
		}
	}

	title, author := processor.documentMetadata(sourcePath)
	htmlPath := htmlPathFor(sourcePath)

	// Step 2: Generate the self-contained HTML intermediate.
	htmlErr := processor.generateHTML(ctx, sourcePath, htmlPath, title, author)
	if htmlErr != nil {
		// A failed generation can leave a partial file behind.
		discardErr := removeArtifact(htmlPath)
		if discardErr != nil {
			processor.log.Warn(
				"Could not remove partial HTML %s: %v",
				htmlPath,
				discardErr,
			)
		}

		return conversionFailed(job, htmlErr)
	}

	processor.log.Info("HTML generated: %s", htmlPath)

	// Step 3: Render the HTML into the final PDF.
	renderResult := processor.renderToPDF(ctx, job, htmlPath, pdfPath)
	if renderResult.Status != StatusSucceeded {
		return renderResult
	}

	// Step 4: Check the produced artifact when the verifier is available.
	verifyResult := processor.verifyProducedPDF(ctx, job, pdfPath)
	if verifyResult.Status != StatusSucceeded {
		return verifyResult
	}

	// Step 5: Remove the intermediate HTML file. Best effort only.
	cleanupErr := removeArtifact(htmlPath)
	if cleanupErr != nil {
		processor.log.Warn(
			"Could not clean up temporary HTML %s: %v",
			htmlPath,
			cleanupErr,
		)
	} else {
		processor.log.Info("Cleaned up temporary HTML file: %s", htmlPath)
	}

	return Result{
		Job:         job,
		Status:      StatusSucceeded,
		Reason:      "",
		OutputBytes: fileSizeBytes(pdfPath),
	}
}

// renderToPDF runs the configured renderer and classifies the outcome.
// The intermediate HTML file is kept on failure to allow inspection.
func (processor *Processor) renderToPDF(
	ctx context.Context,
	job Job,
	htmlPath, pdfPath string,
) Result {
	renderer, rendererErr := processor.resolveRenderer()
	if rendererErr != nil {
		return conversionFailed(job, rendererErr)
	}

	renderErr := renderer.RenderPDF(ctx, htmlPath, pdfPath)
	if renderErr != nil {
		return conversionFailed(job, renderErr)
	}

	processor.log.Info("PDF generated: %s", pdfPath)

	return Result{Job: job, Status: StatusSucceeded, Reason: "", OutputBytes: 0}
}

// verifyProducedPDF downgrades a rendered job to a failure when the artifact does
// not look like a PDF. Verifier malfunctions only warn, because the PDF itself was
// produced.
func (processor *Processor) verifyProducedPDF(
	ctx context.Context,
	job Job,
	pdfPath string,
) Result {
	succeeded := Result{Job: job, Status: StatusSucceeded, Reason: "", OutputBytes: 0}

	if processor.verifierPath == "" {
		return succeeded
	}

	valid, verifyErr := processor.verifyArtifact(ctx, pdfPath)
	if verifyErr != nil {
		processor.log.Warn("PDF verification failed for %s: %v", pdfPath, verifyErr)

		return succeeded
	}

	if !valid {
		return Result{
			Job:         job,
			Status:      StatusConversionFailed,
			Reason:      fmt.Sprintf("produced file %s is not a valid PDF", pdfPath),
			OutputBytes: 0,
		}
	}

	return succeeded
}

// documentMetadata determines the title and author for a document. Values from a
// YAML front matter block override the batch-wide configuration.
func (processor *Processor) documentMetadata(sourcePath string) (string, string) {
	title := processor.config.Title
	author := processor.config.Author

	data, readErr := os.ReadFile(sourcePath)
	if readErr != nil {
		processor.log.Warn(
			"Could not read %s for front matter: %v",
			sourcePath,
			readErr,
		)

		return title, author
	}

	meta, _, extractErr := frontmatter.Extract(data)
	if extractErr != nil {
		processor.log.Warn(
			"Ignoring malformed front matter in %s: %v",
			sourcePath,
			extractErr,
		)

		return title, author
	}

	if meta.Title != "" {
		title = meta.Title
	}

	if meta.Author != "" {
		author = meta.Author
	}

	return title, author
}

func conversionFailed(job Job, reason error) Result {
	return Result{
		Job:         job,
		Status:      StatusConversionFailed,
		Reason:      reason.Error(),
		OutputBytes: 0,
	}
}
