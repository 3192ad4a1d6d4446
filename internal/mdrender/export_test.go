package mdrender

import "context"

// Exported test-only accessors for unexported functions and fields.
// This file is compiled only during tests and does not affect the public API.

// BuildPandocArgsForTest exposes buildPandocArgs for tests in external package.
func BuildPandocArgsForTest(sourcePath, htmlPath, cssPath, title, author string) []string {
	return buildPandocArgs(sourcePath, htmlPath, cssPath, title, author)
}

// InterpretVerifierExitCodeForTest exposes interpretVerifierExitCode for tests in
// external package.
func InterpretVerifierExitCodeForTest(err error) (bool, error) {
	return interpretVerifierExitCode(err)
}

// HTMLPathForForTest exposes htmlPathFor for tests in external package.
func HTMLPathForForTest(sourcePath string) string { return htmlPathFor(sourcePath) }

// ConfigForTest returns a copy of the processor configuration for assertions in tests.
func (processor *Processor) ConfigForTest() Options { return processor.config }

// Test-only helpers to access unexported methods for white-box tests from external
// package.
func (processor *Processor) ValidateConfigForTest() error { return processor.validateConfig() }

func (processor *Processor) PrepareToolsForTest(ctx context.Context) {
	processor.prepareTools(ctx)
}

// VerifierPathForTest reports the helper binary chosen by prepareTools.
func (processor *Processor) VerifierPathForTest() string { return processor.verifierPath }

// SetVerifierPathForTest points artifact verification at a caller-controlled command.
func (processor *Processor) SetVerifierPathForTest(path string) {
	processor.verifierPath = path
}

// Allow tests to inject a fake executor.
func (processor *Processor) SetExecutorForTest(
	exec CommandExecutor,
) {
	processor.executor = exec
}

// Allow tests to inject a fake renderer ahead of engine resolution.
func (processor *Processor) SetRendererForTest(renderer Renderer) {
	processor.renderer = renderer
}

// Call internal processing functions for focused tests.
func (processor *Processor) ProcessOneJobForTest(ctx context.Context, job Job) Result {
	return processor.processOneJob(ctx, job)
}
