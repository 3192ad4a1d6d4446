// Command md-to-pdf converts Markdown documentation into PDF files.
//
// Each document passes through two external tools: pandoc turns the Markdown into
// a single self-contained HTML file, then the configured engine renders that HTML
// into the final PDF. Configuration comes from the project.toml at the project
// root; command-line flags override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

// version is set at build time via ldflags.
var version = "dev"

// configFile is the optional --config override for the discovered project.toml.
var configFile string

// rootCmd is the base command for the md-to-pdf CLI.
var rootCmd = &cobra.Command{
	Use:   "md-to-pdf",
	Short: "Batch Markdown to PDF converter",
	Long: `md-to-pdf converts a set of Markdown documents into PDF files.

Each conversion shells out to pandoc for a self-contained HTML intermediate and
renders it to PDF with weasyprint or wkhtmltopdf. Jobs come from positional
arguments, the [[documents]] list in project.toml, or a built-in documentation
set, in that order of preference.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Path to project.toml (default: discovered from the project root).",
	)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

// Define named types for each section of the configuration.
type configPaths struct {
	WorkDir string `toml:"work_dir"`
	CSS     string `toml:"css"`
}

type configMetadata struct {
	Title  string `toml:"title"`
	Author string `toml:"author"`
}

type configRender struct {
	Engine string `toml:"engine"`
}

type configLogsDir struct {
	MDToPDF string `toml:"md_to_pdf"`
}

type configHistory struct {
	Path string `toml:"path"`
}

type configDocument struct {
	Source string `toml:"source"`
	Output string `toml:"output"`
}

// config represents the structure of the project.toml file, using named types.
type config struct {
	Paths     configPaths      `toml:"paths"`
	Metadata  configMetadata   `toml:"metadata"`
	Render    configRender     `toml:"render"`
	LogsDir   configLogsDir    `toml:"logs_dir"`
	History   configHistory    `toml:"history"`
	Documents []configDocument `toml:"documents"`
}

// loadProjectConfig discovers the project root and loads its configuration.
// An explicit --config path wins over discovery; in that case the config file's
// directory stands in for the project root if discovery failed.
func loadProjectConfig() (string, *config, error) {
	projectRoot, configPath, rootErr := configurator.FindProjectRoot(".")

	if configFile != "" {
		configPath = configFile

		if rootErr != nil {
			projectRoot = filepath.Dir(configFile)
		}
	} else if rootErr != nil {
		return "", nil, fmt.Errorf("could not find project root: %w", rootErr)
	}

	cfg, loadErr := safeLoadConfig(configPath)
	if loadErr != nil {
		return "", nil, loadErr
	}

	return projectRoot, &cfg, nil
}

// safeLoadConfig loads the TOML config, allowing missing file without error.
func safeLoadConfig(path string) (config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var emptyCfg config

			return emptyCfg, nil
		}

		return config{}, fmt.Errorf("error loading config file: %w", err)
	}

	return cfg, nil
}

// loadConfig reads and parses the project.toml file.
func loadConfig(path string) (config, error) {
	var cfg config

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var zero config

		return zero, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// flags represents the command-line arguments of the convert command.
type flags struct {
	workDir string
	css     string
	title   string
	author  string
	engine  string
}

// mergeConfigAndFlags combines settings from the config file and command-line flags.
// Flags take precedence over the config file settings.
func mergeConfigAndFlags(
	cfg *config,
	flgs flags,
	projectRoot string,
	jobs []mdrender.Job,
) mdrender.Options {
	opts := mdrender.Options{
		SummaryOutput:     nil,
		ProgressBarOutput: nil,
		WorkDir:           cfg.Paths.WorkDir,
		CSSPath:           cfg.Paths.CSS,
		Title:             cfg.Metadata.Title,
		Author:            cfg.Metadata.Author,
		Engine:            cfg.Render.Engine,
		ProjectRoot:       projectRoot,
		Jobs:              jobs,
	}

	// Command-line flags override config file values.
	if flgs.workDir != "" {
		opts.WorkDir = flgs.workDir
	}

	if flgs.css != "" {
		opts.CSSPath = flgs.css
	}

	if flgs.title != "" {
		opts.Title = flgs.title
	}

	if flgs.author != "" {
		opts.Author = flgs.author
	}

	if flgs.engine != "" {
		opts.Engine = flgs.engine
	}

	return opts
}

// resolveJobs determines the job list. Positional arguments win over the configured
// document list, which wins over the built-in documentation set.
func resolveJobs(cfg *config, args []string) []mdrender.Job {
	if len(args) > 0 {
		jobs := make([]mdrender.Job, 0, len(args))
		for _, source := range args {
			jobs = append(jobs, mdrender.Job{
				Source: source,
				Output: derivePDFPath(source),
			})
		}

		return jobs
	}

	if len(cfg.Documents) > 0 {
		jobs := make([]mdrender.Job, 0, len(cfg.Documents))
		for _, document := range cfg.Documents {
			output := document.Output
			if output == "" {
				output = derivePDFPath(document.Source)
			}

			jobs = append(jobs, mdrender.Job{
				Source: document.Source,
				Output: output,
			})
		}

		return jobs
	}

	return defaultJobs()
}

// derivePDFPath swaps a source file's extension for .pdf.
func derivePDFPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".pdf"
}

// defaultJobs is the documentation set converted when nothing else is configured.
func defaultJobs() []mdrender.Job {
	return []mdrender.Job{
		{Source: "REFERENCE_MANUAL.md", Output: "REFERENCE_MANUAL.pdf"},
		{Source: "IMPLEMENTATION_GUIDE.md", Output: "IMPLEMENTATION_GUIDE.pdf"},
		{Source: "ARCHITECTURE.md", Output: "ARCHITECTURE.pdf"},
	}
}

// historyPath returns the configured history database location, defaulting to a
// dotted directory under the project root.
func historyPath(cfg *config, projectRoot string) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}

	return filepath.Join(projectRoot, ".md-to-pdf", "history.db")
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(projectRoot, logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(projectRoot, "logs", "md_to_pdf")
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
