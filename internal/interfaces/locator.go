package interfaces

import (
	"context"
	"errors"
)

// ErrNoPDFFound is returned when no PDF candidate could be identified on
// the page
var ErrNoPDFFound = errors.New("no PDF link could be identified on the page")

// PDFLocator resolves a paper page URL to a best-guess PDF resource URL.
// pdfURLOverride, when non-empty, is resolved against pageURL and trusted
// verbatim.
type PDFLocator interface {
	Locate(ctx context.Context, pageURL, pdfURLOverride string) (string, error)
}
