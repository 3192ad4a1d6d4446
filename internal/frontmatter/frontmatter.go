// Package frontmatter extracts YAML front matter from Markdown documents.
//
// A front matter block starts with a `---` line at the very top of the document
// (a UTF-8 byte order mark before it is tolerated) and ends with a `---` or `...`
// line. Documents without such a block pass through untouched.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// ErrUnterminatedBlock is returned when an opening delimiter has no closing line.
var ErrUnterminatedBlock = errors.New("front matter block is not terminated")

// Meta holds the document metadata fields the conversion pipeline consumes.
// Unknown keys in the block are ignored.
type Meta struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extract splits a document into its front matter metadata and body.
// When no front matter is present it returns a zero Meta, the input unchanged, and
// no error. A malformed block returns an error and the input unchanged so callers
// can fall back to treating the document as plain Markdown.
func Extract(data []byte) (Meta, []byte, error) {
	var meta Meta

	content := bytes.TrimPrefix(data, utf8BOM)

	firstLine, rest, hasMore := bytes.Cut(content, []byte("\n"))
	if !hasMore || !isOpeningDelimiter(firstLine) {
		return meta, data, nil
	}

	block, body, splitErr := splitAtClosingDelimiter(rest)
	if splitErr != nil {
		return meta, data, splitErr
	}

	unmarshalErr := yaml.Unmarshal(block, &meta)
	if unmarshalErr != nil {
		return Meta{}, data, fmt.Errorf("parse front matter block: %w", unmarshalErr)
	}

	return meta, body, nil
}

// splitAtClosingDelimiter scans rest line by line for the closing delimiter and
// returns the YAML block before it and the body after it.
func splitAtClosingDelimiter(rest []byte) ([]byte, []byte, error) {
	offset := 0

	for offset <= len(rest) {
		newlineAt := bytes.IndexByte(rest[offset:], '\n')

		lineEnd := len(rest)
		nextOffset := len(rest) + 1

		if newlineAt >= 0 {
			lineEnd = offset + newlineAt
			nextOffset = lineEnd + 1
		}

		line := rest[offset:lineEnd]
		if isDelimiterLine(line) {
			body := []byte{}
			if nextOffset <= len(rest) {
				body = rest[nextOffset:]
			}

			return rest[:offset], body, nil
		}

		if newlineAt < 0 {
			break
		}

		offset = nextOffset
	}

	return nil, nil, ErrUnterminatedBlock
}

// isOpeningDelimiter reports whether the first line opens a front matter block.
// Only `---` opens a block; `...` closes one but never opens it.
func isOpeningDelimiter(line []byte) bool {
	return bytes.Equal(bytes.TrimSuffix(line, []byte("\r")), []byte("---"))
}

// isDelimiterLine reports whether a line closes a front matter block.
// A trailing carriage return from CRLF files is tolerated.
func isDelimiterLine(line []byte) bool {
	trimmed := bytes.TrimSuffix(line, []byte("\r"))

	return bytes.Equal(trimmed, []byte("---")) || bytes.Equal(trimmed, []byte("..."))
}
