// Command verify-pdf analyzes a file and exits with a code indicating whether it
// is a structurally plausible PDF document.
//
// Usage: verify-pdf <filepath>
//
// A file passes when it starts with the %PDF- magic marker and carries a %%EOF
// trailer near its end. The check is deliberately shallow; it catches truncated
// or misnamed artifacts, not every malformed document.
//
// Exit codes:
//
//	0 = valid PDF
//	1 = not a valid PDF
//	2 = error (bad args, file cannot be read, etc.)
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrInvalidArguments = errors.New("invalid number of arguments")

// arguments holds the parsed and validated command-line arguments.
type arguments struct {
	filePath string
}

// Exit codes used by this tool to communicate with the main application.
const (
	exitCodeValid   = 0 // The file is a well-formed PDF.
	exitCodeInvalid = 1 // The file is not a valid PDF.
	exitCodeError   = 2 // An error occurred (e.g., bad arguments, file not found).

	// Command line argument constants.
	expectedArgCount = 2

	// trailerWindow is how far from the end of the file the %%EOF marker may sit.
	trailerWindow = 1024
)

var (
	pdfHeader  = []byte("%PDF-")
	pdfTrailer = []byte("%%EOF")
)

func main() {
	// Step 1: Parse and validate the command-line arguments.
	args, err := parseAndValidateArguments(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Argument error: %v\n", err)
		os.Exit(exitCodeError)
	}

	// Step 2: Analyze the file structure.
	valid, err := isWellFormedPDF(args.filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PDF analysis error: %v\n", err)
		os.Exit(exitCodeError)
	}

	// Step 3: Exit with the appropriate code based on the analysis.
	if !valid {
		os.Exit(exitCodeInvalid)
	}

	os.Exit(exitCodeValid)
}

// --- Argument Parsing ---

// parseAndValidateArguments processes the raw command-line arguments.
func parseAndValidateArguments(args []string) (arguments, error) {
	if len(args) != expectedArgCount {
		return arguments{}, fmt.Errorf(
			"expected 1 argument, but got %d. Usage: <program> <filepath>: %w",
			len(args)-1,
			ErrInvalidArguments,
		)
	}

	return arguments{filePath: args[1]}, nil
}

// --- PDF Analysis ---

// isWellFormedPDF checks the magic header and the end-of-file trailer of a file.
func isWellFormedPDF(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("could not open file %s: %w", filePath, err)
	}

	defer func() {
		cerr := file.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to close file %s: %v\n",
				filePath,
				cerr,
			)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat file %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		return false, nil
	}

	hasHeader, err := checkHeader(file)
	if err != nil {
		return false, err
	}

	if !hasHeader {
		return false, nil
	}

	return checkTrailer(file, info.Size())
}

// checkHeader reports whether the file starts with the %PDF- marker.
func checkHeader(file *os.File) (bool, error) {
	header := make([]byte, len(pdfHeader))

	_, err := io.ReadFull(file, header)
	if err != nil {
		// A file shorter than the marker cannot be a PDF.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}

		return false, fmt.Errorf("could not read file header: %w", err)
	}

	return bytes.Equal(header, pdfHeader), nil
}

// checkTrailer reports whether the %%EOF marker appears in the last trailerWindow
// bytes of the file.
func checkTrailer(file *os.File, size int64) (bool, error) {
	windowSize := min(size, int64(trailerWindow))

	window := make([]byte, windowSize)

	_, err := file.ReadAt(window, size-windowSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("could not read file trailer: %w", err)
	}

	return bytes.Contains(window, pdfTrailer), nil
}
