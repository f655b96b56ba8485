package interfaces

import "context"

// Fetcher performs outbound HTTP fetches for the pipeline
type Fetcher interface {
	// FetchPage retrieves the HTML of a paper page
	FetchPage(ctx context.Context, pageURL string) (string, error)

	// DownloadPDF retrieves PDF bytes, sending the page URL as referer.
	// Fails on non-success status, an empty body, or bytes that do not
	// parse as a PDF.
	DownloadPDF(ctx context.Context, pdfURL, referer string) ([]byte, error)
}
