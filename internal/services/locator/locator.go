package locator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Service resolves paper page URLs to PDF resource URLs. Resolution is a
// short-circuit chain: caller override, direct-PDF page URL, known
// publisher rules, then a full HTML scan.
type Service struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFLocator = (*Service)(nil)

// NewService creates a new PDF locator
func NewService(fetcher interfaces.Fetcher, logger arbor.ILogger) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Locate resolves the page URL to a best-guess PDF URL. A non-empty
// override is resolved against the page URL and trusted verbatim.
func (s *Service) Locate(ctx context.Context, pageURL, pdfURLOverride string) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	if pdfURLOverride != "" {
		resolved := resolveAgainst(page, strings.TrimSpace(pdfURLOverride))
		if resolved == "" {
			return "", fmt.Errorf("invalid PDF URL override %q", pdfURLOverride)
		}
		s.logger.Info().Str("pdf_url", resolved).Msg("Using caller-supplied PDF URL")
		return resolved, nil
	}

	if LooksLikePDF(pageURL, "", "") {
		s.logger.Info().Str("pdf_url", pageURL).Msg("Page URL is itself a PDF resource")
		return pageURL, nil
	}

	if pdfURL := resolveKnownSite(page); pdfURL != "" {
		s.logger.Info().Str("pdf_url", pdfURL).Msg("Derived PDF link from known site pattern without scraping")
		return pdfURL, nil
	}

	return s.discover(ctx, page)
}

// discover fetches the page HTML and scans anchors, citation metadata and
// link elements for PDF candidates. An exact .pdf suffix wins immediately;
// otherwise the first accumulated candidate is returned once every source
// has been exhausted.
func (s *Service) discover(ctx context.Context, page *url.URL) (string, error) {
	s.logger.Info().Str("page_url", page.String()).Msg("Fetching page for PDF discovery")

	html, err := s.fetcher.FetchPage(ctx, page.String())
	if err != nil {
		return "", fmt.Errorf("failed to fetch page %s: %w", page.String(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}

	scan := newCandidateScan(page)

	// Anchor elements first: href plus link text and declared MIME type
	var exact string
	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		mimeType, _ := sel.Attr("type")
		exact = scan.consider(strings.TrimSpace(href), strings.TrimSpace(sel.Text()), mimeType)
		return exact == ""
	})
	if exact != "" {
		s.logger.Info().Str("pdf_url", exact).Msg("Found exact PDF link in anchors")
		return exact, nil
	}

	// Citation metadata next
	if content, ok := doc.Find(`meta[name="citation_pdf_url"]`).First().Attr("content"); ok {
		if exact := scan.consider(strings.TrimSpace(content), "", ""); exact != "" {
			s.logger.Info().Str("pdf_url", exact).Msg("Found exact PDF link in citation metadata")
			return exact, nil
		}
	}

	// Link elements declaring application/pdf last
	doc.Find("link[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		linkType, _ := sel.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(linkType), "application/pdf") {
			return true
		}
		href, _ := sel.Attr("href")
		exact = scan.consider(strings.TrimSpace(href), "", "application/pdf")
		return exact == ""
	})
	if exact != "" {
		s.logger.Info().Str("pdf_url", exact).Msg("Found exact PDF link in link elements")
		return exact, nil
	}

	if candidate := scan.first(); candidate != "" {
		s.logger.Info().
			Str("pdf_url", candidate).
			Int("candidates", len(scan.candidates)).
			Msg("Selected PDF link from candidate list")
		return candidate, nil
	}

	return "", interfaces.ErrNoPDFFound
}

// candidateScan accumulates deduplicated PDF-like URLs during discovery
type candidateScan struct {
	page       *url.URL
	seen       map[string]bool
	candidates []string
}

func newCandidateScan(page *url.URL) *candidateScan {
	return &candidateScan{
		page: page,
		seen: make(map[string]bool),
	}
}

// consider resolves a raw candidate URL and either returns it (exact .pdf
// suffix) or records it when it merely looks like a PDF. Returns "" when
// scanning should continue.
func (c *candidateScan) consider(rawURL, anchorText, mimeType string) string {
	if rawURL == "" {
		return ""
	}
	resolved := resolveAgainst(c.page, rawURL)
	if resolved == "" {
		return ""
	}

	if !LooksLikePDF(resolved, anchorText, mimeType) {
		return ""
	}

	if parsed, err := url.Parse(resolved); err == nil &&
		strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return resolved
	}

	if !c.seen[resolved] {
		c.seen[resolved] = true
		c.candidates = append(c.candidates, resolved)
	}
	return ""
}

// first returns the earliest recorded candidate, or ""
func (c *candidateScan) first() string {
	if len(c.candidates) == 0 {
		return ""
	}
	return c.candidates[0]
}

// LooksLikePDF reports whether a URL plausibly points at a PDF resource.
// Intentionally permissive - a wrong guess only costs one failed download.
func LooksLikePDF(rawURL, anchorText, mimeType string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	path := strings.ToLower(parsed.Path)
	query := strings.ToLower(parsed.RawQuery)
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	text := strings.ToLower(anchorText)

	switch {
	case strings.HasSuffix(path, ".pdf"):
		return true
	case mime == "application/pdf":
		return true
	case strings.Contains(path, ".pdf"):
		return true
	case strings.Contains(path, "/pdf/"):
		return true
	case strings.Contains(query, "format=pdf") || strings.Contains(query, "download=1"):
		return true
	case strings.Contains(text, "pdf"):
		return true
	}
	return false
}
