// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender_test

import (
	"os"
	"os/exec"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

func TestNewProcessor_Defaults(t *testing.T) {
	t.Parallel()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	t.Run("Zero values should default correctly", func(t *testing.T) {
		t.Parallel()

		processor := mdrender.NewProcessor(&mdrender.Options{
			SummaryOutput:     nil,
			ProgressBarOutput: nil,
			WorkDir:           "",
			CSSPath:           "",
			Title:             "",
			Author:            "",
			Engine:            "",
			ProjectRoot:       "",
			Jobs:              nil,
		}, log)
		cfg := processor.ConfigForTest()
		assert.Equal(t, mdrender.EngineWeasyPrint, cfg.Engine)
		assert.Equal(t, "style.css", cfg.CSSPath)
		assert.Equal(t, ".", cfg.WorkDir)
		assert.NotNil(t, cfg.SummaryOutput)
		assert.NotNil(t, cfg.ProgressBarOutput)
	})

	t.Run("Custom values should be preserved", func(t *testing.T) {
		t.Parallel()

		opts := mdrender.Options{
			SummaryOutput:     nil,
			ProgressBarOutput: nil,
			WorkDir:           "docs",
			CSSPath:           "print.css",
			Title:             "Reference Manual",
			Author:            "Docs Team",
			Engine:            mdrender.EngineWKHTMLToPDF,
			ProjectRoot:       "",
			Jobs:              nil,
		}
		processor := mdrender.NewProcessor(&opts, log)
		cfg := processor.ConfigForTest()
		assert.Equal(t, mdrender.EngineWKHTMLToPDF, cfg.Engine)
		assert.Equal(t, "print.css", cfg.CSSPath)
		assert.Equal(t, "docs", cfg.WorkDir)
	})
}

func TestBuildPandocArgs(t *testing.T) {
	t.Parallel()

	args := mdrender.BuildPandocArgsForTest(
		"doc.md",
		"doc.html",
		"style.css",
		"Reference Manual",
		"Docs Team",
	)
	expected := []string{
		"-f", "markdown",
		"-t", "html",
		"doc.md",
		"-o", "doc.html",
		"--css=style.css",
		"--metadata", "title=Reference Manual",
		"--metadata", "author=Docs Team",
		"--standalone",
		"--embed-resources",
	}
	assert.Equal(t, expected, args)
}

func TestHTMLPathFor(t *testing.T) {
	t.Parallel()
	t.Run("Markdown extension is replaced", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "docs/guide.html", mdrender.HTMLPathForForTest("docs/guide.md"))
	})

	t.Run("Source without extension gets the suffix appended", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "README.html", mdrender.HTMLPathForForTest("README"))
	})
}

func TestInterpretVerifierExitCode(t *testing.T) {
	t.Parallel()
	t.Run("Exit code 0 means valid", func(t *testing.T) {
		t.Parallel()

		valid, err := mdrender.InterpretVerifierExitCodeForTest(
			nil,
		) // nil error is equivalent to exit code 0
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("Exit code 1 means invalid", func(t *testing.T) {
		t.Parallel()
		// Constructing exec.ExitError with a specific non-zero code is not
		// portable across platforms. We skip this subtest and rely on integration
		// behavior.
		t.Skip("cannot reliably construct exec.ExitError with code 1 in tests")
	})

	t.Run("Other exit codes mean error", func(t *testing.T) {
		t.Parallel()

		errWithCode2 := &exec.ExitError{
			ProcessState: &os.ProcessState{},
			Stderr:       nil,
		}
		_, err := mdrender.InterpretVerifierExitCodeForTest(errWithCode2)
		assert.Error(t, err)
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("Empty batch", func(t *testing.T) {
		t.Parallel()

		summary := mdrender.Summarize(nil)
		assert.Equal(t, 0, summary.Succeeded)
		assert.Equal(t, 0, summary.Failed)
	})

	t.Run("Every non-succeeded outcome counts as a failure", func(t *testing.T) {
		t.Parallel()

		results := []mdrender.Result{
			{
				Job:         mdrender.Job{Source: "a.md", Output: "a.pdf"},
				Status:      mdrender.StatusSucceeded,
				Reason:      "",
				OutputBytes: 1024,
			},
			{
				Job:         mdrender.Job{Source: "b.md", Output: "b.pdf"},
				Status:      mdrender.StatusSourceMissing,
				Reason:      "source file not found: b.md",
				OutputBytes: 0,
			},
			{
				Job:         mdrender.Job{Source: "c.md", Output: "c.pdf"},
				Status:      mdrender.StatusConversionFailed,
				Reason:      "pandoc execution failed",
				OutputBytes: 0,
			},
		}
		summary := mdrender.Summarize(results)
		assert.Equal(t, 1, summary.Succeeded)
		assert.Equal(t, 2, summary.Failed)
		assert.Equal(t, len(results), summary.Succeeded+summary.Failed)
	})
}
