package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

// TestMergeConfigAndFlags verifies that command-line flags correctly override config
// file settings.
func TestMergeConfigAndFlags(t *testing.T) {
	t.Parallel()

	jobs := []mdrender.Job{{Source: "guide.md", Output: "guide.pdf"}}

	testCases := []struct {
		name            string
		projectRoot     string
		flags           flags
		baseConfig      config
		expectedOptions mdrender.Options
	}{
		{
			name: "Flags should override all corresponding config values",
			baseConfig: config{
				Paths: configPaths{WorkDir: "/config/docs", CSS: "config.css"},
				Metadata: configMetadata{
					Title:  "Config Title",
					Author: "Config Author",
				},
				Render:    configRender{Engine: mdrender.EngineWeasyPrint},
				LogsDir:   configLogsDir{MDToPDF: ""},
				History:   configHistory{Path: ""},
				Documents: nil,
			},
			flags: flags{
				workDir: "/flag/docs",
				css:     "flag.css",
				title:   "Flag Title",
				author:  "Flag Author",
				engine:  mdrender.EngineWKHTMLToPDF,
			},
			projectRoot: "/root",
			expectedOptions: mdrender.Options{
				SummaryOutput:     nil,
				ProgressBarOutput: nil,
				WorkDir:           "/flag/docs",
				CSSPath:           "flag.css",
				Title:             "Flag Title",
				Author:            "Flag Author",
				Engine:            mdrender.EngineWKHTMLToPDF,
				ProjectRoot:       "/root",
				Jobs:              jobs,
			},
		},
		{
			name: "Config values should be used when flags are not provided",
			baseConfig: config{
				Paths: configPaths{WorkDir: "/config/docs", CSS: "config.css"},
				Metadata: configMetadata{
					Title:  "Config Title",
					Author: "Config Author",
				},
				Render:    configRender{Engine: mdrender.EngineWeasyPrint},
				LogsDir:   configLogsDir{MDToPDF: ""},
				History:   configHistory{Path: ""},
				Documents: nil,
			},
			flags: flags{
				workDir: "",
				css:     "",
				title:   "",
				author:  "",
				engine:  "",
			}, // No flags provided.
			projectRoot: "/root",
			expectedOptions: mdrender.Options{
				SummaryOutput:     nil,
				ProgressBarOutput: nil,
				WorkDir:           "/config/docs",
				CSSPath:           "config.css",
				Title:             "Config Title",
				Author:            "Config Author",
				Engine:            mdrender.EngineWeasyPrint,
				ProjectRoot:       "/root",
				Jobs:              jobs,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := mergeConfigAndFlags(
				&testCase.baseConfig,
				testCase.flags,
				testCase.projectRoot,
				jobs,
			)

			assert.Equal(t, testCase.expectedOptions, result)
		})
	}
}

func TestResolveJobs(t *testing.T) {
	t.Parallel()

	t.Run("Positional arguments win over configured documents", func(t *testing.T) {
		t.Parallel()

		cfg := &config{
			Paths:    configPaths{WorkDir: "", CSS: ""},
			Metadata: configMetadata{Title: "", Author: ""},
			Render:   configRender{Engine: ""},
			LogsDir:  configLogsDir{MDToPDF: ""},
			History:  configHistory{Path: ""},
			Documents: []configDocument{
				{Source: "configured.md", Output: "configured.pdf"},
			},
		}

		jobs := resolveJobs(cfg, []string{"notes.md", "spec.markdown"})

		assert.Equal(t, []mdrender.Job{
			{Source: "notes.md", Output: "notes.pdf"},
			{Source: "spec.markdown", Output: "spec.pdf"},
		}, jobs)
	})

	t.Run("Configured documents are used without arguments", func(t *testing.T) {
		t.Parallel()

		cfg := &config{
			Paths:    configPaths{WorkDir: "", CSS: ""},
			Metadata: configMetadata{Title: "", Author: ""},
			Render:   configRender{Engine: ""},
			LogsDir:  configLogsDir{MDToPDF: ""},
			History:  configHistory{Path: ""},
			Documents: []configDocument{
				{Source: "guide.md", Output: ""},
				{Source: "manual.md", Output: "out/manual.pdf"},
			},
		}

		jobs := resolveJobs(cfg, nil)

		assert.Equal(t, []mdrender.Job{
			{Source: "guide.md", Output: "guide.pdf"},
			{Source: "manual.md", Output: "out/manual.pdf"},
		}, jobs)
	})

	t.Run("Built-in documentation set is the fallback", func(t *testing.T) {
		t.Parallel()

		cfg := &config{
			Paths:     configPaths{WorkDir: "", CSS: ""},
			Metadata:  configMetadata{Title: "", Author: ""},
			Render:    configRender{Engine: ""},
			LogsDir:   configLogsDir{MDToPDF: ""},
			History:   configHistory{Path: ""},
			Documents: nil,
		}

		jobs := resolveJobs(cfg, nil)

		assert.Equal(t, []mdrender.Job{
			{Source: "REFERENCE_MANUAL.md", Output: "REFERENCE_MANUAL.pdf"},
			{Source: "IMPLEMENTATION_GUIDE.md", Output: "IMPLEMENTATION_GUIDE.pdf"},
			{Source: "ARCHITECTURE.md", Output: "ARCHITECTURE.pdf"},
		}, jobs)
	})
}

func TestDerivePDFPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		source string
		want   string
	}{
		{name: "Markdown extension", source: "guide.md", want: "guide.pdf"},
		{name: "Long extension", source: "notes.markdown", want: "notes.pdf"},
		{name: "No extension", source: "README", want: "README.pdf"},
		{name: "Nested path", source: "docs/a.md", want: "docs/a.pdf"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, derivePDFPath(testCase.source))
		})
	}
}

func TestSafeLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("Missing file yields empty config", func(t *testing.T) {
		t.Parallel()

		cfg, err := safeLoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Paths.WorkDir)
		assert.Empty(t, cfg.Documents)
	})

	t.Run("Valid file is parsed", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "project.toml")
		content := "[paths]\nwork_dir = \"docs\"\n\n" +
			"[render]\nengine = \"wkhtmltopdf\"\n\n" +
			"[[documents]]\nsource = \"guide.md\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := safeLoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "docs", cfg.Paths.WorkDir)
		assert.Equal(t, "wkhtmltopdf", cfg.Render.Engine)
		require.Len(t, cfg.Documents, 1)
		assert.Equal(t, "guide.md", cfg.Documents[0].Source)
	})

	t.Run("Malformed file returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "project.toml")
		require.NoError(t, os.WriteFile(path, []byte("not [toml"), 0o600))

		_, err := safeLoadConfig(path)
		require.Error(t, err)
	})
}

func TestHistoryPath(t *testing.T) {
	t.Parallel()

	cfg := &config{
		Paths:     configPaths{WorkDir: "", CSS: ""},
		Metadata:  configMetadata{Title: "", Author: ""},
		Render:    configRender{Engine: ""},
		LogsDir:   configLogsDir{MDToPDF: ""},
		History:   configHistory{Path: ""},
		Documents: nil,
	}
	assert.Equal(
		t,
		filepath.Join("/root", ".md-to-pdf", "history.db"),
		historyPath(cfg, "/root"),
	)

	cfg.History.Path = "/var/lib/md-to-pdf/history.db"
	assert.Equal(t, "/var/lib/md-to-pdf/history.db", historyPath(cfg, "/root"))
}
