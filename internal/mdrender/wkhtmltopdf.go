// Package mdrender provides Markdown-to-PDF conversion functionality.
package mdrender

import (
	"context"
	"errors"
	"fmt"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// wkhtmltopdfRenderer renders PDFs through the wkhtmltopdf library bindings instead
// of a hand-rolled subprocess call.
type wkhtmltopdfRenderer struct{}

// RenderPDF converts the HTML intermediate into a PDF using wkhtmltopdf.
func (renderer *wkhtmltopdfRenderer) RenderPDF(
	ctx context.Context,
	htmlPath, pdfPath string,
) error {
	if htmlPath == "" || pdfPath == "" {
		return errors.New("html path and pdf path cannot be empty")
	}

	generator, newErr := wkhtmltopdf.NewPDFGenerator()
	if newErr != nil {
		// The constructor fails when the wkhtmltopdf binary cannot be located.
		return fmt.Errorf("%w: wkhtmltopdf (%v)", ErrRendererNotInstalled, newErr)
	}

	page := wkhtmltopdf.NewPage(htmlPath)
	// The HTML is self-contained, but the stylesheet reference may still point at
	// a local file next to the document.
	page.EnableLocalFileAccess.Set(true)
	generator.AddPage(page)

	createErr := generator.CreateContext(ctx)
	if createErr != nil {
		return fmt.Errorf("wkhtmltopdf rendering failed: %w", createErr)
	}

	writeErr := generator.WriteFile(pdfPath)
	if writeErr != nil {
		return fmt.Errorf("could not write PDF to %s: %w", pdfPath, writeErr)
	}

	return nil
}
