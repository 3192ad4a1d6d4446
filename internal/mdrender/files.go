// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const bytesPerMegabyte = 1024 * 1024

// resolveJobPaths resolves a job's source and output against the configured working
// directory. Absolute paths are kept as-is.
func (processor *Processor) resolveJobPaths(job Job) (string, string) {
	return resolvePath(processor.config.WorkDir, job.Source),
		resolvePath(processor.config.WorkDir, job.Output)
}

func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

// htmlPathFor derives the intermediate HTML path from the Markdown source path.
// For a source named 'doc.md' the intermediate is 'doc.html' in the same directory.
func htmlPathFor(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".html"
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// removeArtifact deletes a transient file. A file that is already gone is not an
// error.
func removeArtifact(path string) error {
	removeErr := os.Remove(path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("could not remove %s: %w", path, removeErr)
	}

	return nil
}

// fileSizeBytes returns the size of path, or zero when it cannot be read.
func fileSizeBytes(path string) int64 {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return 0
	}

	return info.Size()
}

// fileSizeMB returns the size of path in megabytes and whether the file exists.
func fileSizeMB(path string) (float64, bool) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return 0, false
	}

	return float64(info.Size()) / bytesPerMegabyte, true
}
