// Package main contains Mage build targets for md-to-pdf-service developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binDir = "bin"

// binaries lists the output names in bin/ and their main package paths.
var binaries = []struct {
	name string
	pkg  string
}{
	{name: "md-to-pdf", pkg: "./cmd/md-to-pdf"},
	{name: "md-to-pdf-service", pkg: "./cmd/md-to-pdf-service"},
	{name: "verify-pdf", pkg: "./cmd/verify-pdf"},
}

// Build compiles all binaries into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	for _, binary := range binaries {
		out := filepath.Join(binDir, binary.name)
		if err := sh.RunV("go", "build", "-o", out, binary.pkg); err != nil {
			return fmt.Errorf("go build %s: %w", binary.pkg, err)
		}
		fmt.Printf("Built %s\n", out)
	}
	return nil
}

// Test runs the full test suite with race detection.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs golangci-lint over the module.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm(binDir)
}

// All builds the binaries and then runs the test suite.
func All() {
	mg.SerialDeps(Build, Test)
}
