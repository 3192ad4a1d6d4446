// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/book-expert/logger"
)

// CommandExecutor defines an interface for running external commands.
// This abstraction is crucial for enabling unit tests to mock command execution.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunCombined executes a command and returns its combined standard output and
	// standard error.
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}

// defaultExecutor implements the CommandExecutor interface using the standard os/exec
// package.
// This is the implementation used in the production application.
type defaultExecutor struct{}

// Run is the production implementation for executing a command.
func (executor *defaultExecutor) Run(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// RunCombined is the production implementation for executing a command and capturing all
// output.
func (executor *defaultExecutor) RunCombined(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Renderer converts a generated HTML file into the final PDF artifact.
type Renderer interface {
	RenderPDF(ctx context.Context, htmlPath, pdfPath string) error
}

// generateHTML executes the `pandoc` command to transform a Markdown source into a
// single self-contained HTML file.
func (processor *Processor) generateHTML(
	ctx context.Context,
	sourcePath, htmlPath, title, author string,
) error {
	if sourcePath == "" || htmlPath == "" {
		return errors.New("source path and html path cannot be empty")
	}

	args := buildPandocArgs(sourcePath, htmlPath, processor.config.CSSPath, title, author)

	outputBytes, execErr := processor.executor.RunCombined(ctx, "pandoc", args...)
	if execErr != nil {
		// Include the command's output in the error for better debugging.
		return fmt.Errorf(
			"pandoc execution failed: %w. Output: %s",
			execErr,
			string(outputBytes),
		)
	}

	return nil
}

// buildPandocArgs constructs the list of command-line arguments for the pandoc
// process. The --standalone and --embed-resources pair makes pandoc emit one
// self-contained HTML document, with the stylesheet and any images inlined, so
// the PDF renderer needs no access to external files.
func buildPandocArgs(sourcePath, htmlPath, cssPath, title, author string) []string {
	return []string{
		"-f", "markdown",
		"-t", "html",
		sourcePath,
		"-o", htmlPath,
		"--css=" + cssPath,
		"--metadata", "title=" + title,
		"--metadata", "author=" + author,
		"--standalone",
		"--embed-resources",
	}
}

// weasyprintRenderer renders PDFs by invoking the weasyprint command-line tool.
type weasyprintRenderer struct {
	executor CommandExecutor
}

// RenderPDF executes `weasyprint` to convert the HTML intermediate into a PDF.
func (renderer *weasyprintRenderer) RenderPDF(
	ctx context.Context,
	htmlPath, pdfPath string,
) error {
	if htmlPath == "" || pdfPath == "" {
		return errors.New("html path and pdf path cannot be empty")
	}

	outputBytes, execErr := renderer.executor.RunCombined(
		ctx,
		"weasyprint",
		htmlPath,
		pdfPath,
	)
	if execErr != nil {
		if errors.Is(execErr, exec.ErrNotFound) {
			return fmt.Errorf(
				"%w: weasyprint (install it with: pip install weasyprint)",
				ErrRendererNotInstalled,
			)
		}

		return fmt.Errorf(
			"weasyprint execution failed: %w. Output: %s",
			execErr,
			string(outputBytes),
		)
	}

	return nil
}

// verifyArtifact executes the `verify-pdf` helper binary to analyze a produced PDF.
func (processor *Processor) verifyArtifact(
	ctx context.Context,
	pdfPath string,
) (bool, error) {
	_, execErr := processor.executor.RunCombined(ctx, processor.verifierPath, pdfPath)

	return interpretVerifierExitCode(execErr)
}

// interpretVerifierExitCode translates the exit code from the verifier binary into a
// boolean result (isValid) or an error.
func interpretVerifierExitCode(execErr error) (bool, error) {
	if execErr == nil {
		// Exit code 0 means the file is a well-formed PDF.
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(execErr, &exitErr) {
		switch exitErr.ExitCode() {
		case 1:
			// Exit code 1 means the file is not a valid PDF.
			return false, nil
		default:
			// Any other exit code indicates an unexpected error in the
			// verifier tool.
			return false, fmt.Errorf(
				"pdf verifier exited with unexpected code %d",
				exitErr.ExitCode(),
			)
		}
	}

	// This handles cases where the command couldn't even be executed (e.g.,
	// permission denied).
	return false, fmt.Errorf("failed to run pdf verifier command: %w", execErr)
}

// ensureVerifyPDFBinary checks for the existence of the `verify-pdf` binary
// and compiles it from source if it is not found.
func ensureVerifyPDFBinary(
	ctx context.Context,
	projectRoot string,
	log *logger.Logger,
) (string, error) {
	if projectRoot == "" {
		return "", errors.New("projectRoot must be set to auto-build helper binaries")
	}

	binaryPath := filepath.Join(projectRoot, "bin", "verify-pdf")
	sourcePath := filepath.Join(projectRoot, "cmd", "verify-pdf", "main.go")

	// If the binary already exists, we don't need to do anything.
	if _, statErr := os.Stat(binaryPath); statErr == nil {
		return binaryPath, nil
	}

	// If the source code is missing, we can't build it.
	if _, statErr := os.Stat(sourcePath); os.IsNotExist(statErr) {
		return "", fmt.Errorf(
			"cannot build verify-pdf: source file not found at %s",
			sourcePath,
		)
	}

	// Proceed with building the binary.
	buildErr := buildArtifactVerifier(ctx, sourcePath, binaryPath, log)
	if buildErr != nil {
		return "", buildErr
	}

	return binaryPath, nil
}

// buildArtifactVerifier runs `go build` to compile the helper binary from its source
// file.
func buildArtifactVerifier(
	ctx context.Context,
	sourcePath, binaryPath string,
	log *logger.Logger,
) error {
	log.Info("Verify-pdf binary not found. Building from source...")

	binDir := filepath.Dir(binaryPath)

	mkdirErr := os.MkdirAll(binDir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf(
			"could not create bin directory at %s: %w",
			binDir,
			mkdirErr,
		)
	}

	// The `-o` flag specifies the output path for the compiled binary.
	cmd := exec.CommandContext(ctx, "go", "build", "-o", binaryPath, sourcePath)

	output, buildErr := cmd.CombinedOutput()
	if buildErr != nil {
		return fmt.Errorf(
			"failed to build verify-pdf binary: %w. Output: %s",
			buildErr,
			string(output),
		)
	}

	log.Success("Successfully built verify-pdf binary at %s", binaryPath)

	return nil
}

// ToolStatus describes the availability of one external tool the pipeline depends on.
type ToolStatus struct {
	Name      string
	Path      string
	Note      string
	Required  bool
	Available bool
}

// CheckTools probes PATH for the external tools used by the conversion pipeline.
// The binary matching the selected engine is required; the other engine is reported
// for information only.
func CheckTools(engine string) []ToolStatus {
	statuses := []ToolStatus{
		probeTool("pandoc", true, "converts Markdown to HTML"),
		probeTool(
			EngineWeasyPrint,
			engine == EngineWeasyPrint,
			"renders HTML to PDF",
		),
		probeTool(
			EngineWKHTMLToPDF,
			engine == EngineWKHTMLToPDF,
			"renders HTML to PDF",
		),
	}

	return statuses
}

func probeTool(name string, required bool, note string) ToolStatus {
	path, lookErr := exec.LookPath(name)

	return ToolStatus{
		Name:      name,
		Path:      path,
		Note:      note,
		Required:  required,
		Available: lookErr == nil,
	}
}
