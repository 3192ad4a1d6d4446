package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/book-expert/md-to-pdf-service/internal/mdrender"
)

// ErrMissingTools is returned when a required external tool is not on PATH.
var ErrMissingTools = errors.New("required external tools are missing")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the required external tools are installed",
	Long: `Doctor probes PATH for the external tools the pipeline shells out to:
pandoc and the PDF engine selected in the configuration. The other engine is
reported for information only.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() error {
	_, cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	engine := cfg.Render.Engine
	if engine == "" {
		engine = mdrender.EngineWeasyPrint
	}

	missing := 0

	for _, status := range mdrender.CheckTools(engine) {
		printToolStatus(status)

		if status.Required && !status.Available {
			missing++
		}
	}

	if missing > 0 {
		return fmt.Errorf("%w: %d tool(s) not found", ErrMissingTools, missing)
	}

	return nil
}

func printToolStatus(status mdrender.ToolStatus) {
	marker := "✓"

	location := status.Path
	if !status.Available {
		marker = "✗"
		location = "not found"
	}

	requirement := "required"
	if !status.Required {
		requirement = "optional"
	}

	fmt.Printf(
		"  %s %-12s %s (%s, %s)\n",
		marker,
		status.Name,
		location,
		status.Note,
		requirement,
	)
}
