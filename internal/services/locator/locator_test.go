package locator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// fakeFetcher serves canned HTML per URL
type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	f.fetched = append(f.fetched, pageURL)
	html, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("unexpected fetch: %s", pageURL)
	}
	return html, nil
}

func (f *fakeFetcher) DownloadPDF(ctx context.Context, pdfURL, referer string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func newTestLocator(pages map[string]string) (*Service, *fakeFetcher) {
	fetcher := &fakeFetcher{pages: pages}
	return NewService(fetcher, arbor.NewLogger()), fetcher
}

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", rawURL, err)
	}
	return parsed
}

func TestLooksLikePDF(t *testing.T) {
	tests := []struct {
		url        string
		anchorText string
		mimeType   string
		want       bool
	}{
		// Exact suffix, any case
		{"https://host/paper.pdf", "", "", true},
		{"https://host/paper.PDF", "", "", true},
		{"https://host/paper.Pdf", "", "", true},

		// Declared MIME type
		{"https://host/get/123", "", "application/pdf", true},
		{"https://host/get/123", "", "APPLICATION/PDF", true},
		{"https://host/get/123", "", "text/html", false},

		// .pdf anywhere in path
		{"https://host/paper.pdf.gz", "", "", true},

		// /pdf/ path segment
		{"https://host/pdf/2301.00001", "", "", true},

		// Query markers
		{"https://host/download?format=pdf", "", "", true},
		{"https://host/download?download=1", "", "", true},
		{"https://host/download?format=epub", "", "", false},

		// Anchor text
		{"https://host/get/123", "Download PDF", "", true},
		{"https://host/get/123", "full text (pdf)", "", true},
		{"https://host/get/123", "Download EPUB", "", false},

		// Nothing PDF-like
		{"https://host/about", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url+"|"+tt.anchorText+"|"+tt.mimeType, func(t *testing.T) {
			if got := LooksLikePDF(tt.url, tt.anchorText, tt.mimeType); got != tt.want {
				t.Errorf("LooksLikePDF(%q, %q, %q) = %v, want %v", tt.url, tt.anchorText, tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestKnownSiteRules(t *testing.T) {
	tests := []struct {
		pageURL string
		want    string
	}{
		{"https://arxiv.org/abs/2301.00001", "https://arxiv.org/pdf/2301.00001.pdf"},
		{"https://arxiv.org/abs/2301.00001/", "https://arxiv.org/pdf/2301.00001.pdf"},
		{"https://www.arxiv.org/abs/1706.03762", "https://www.arxiv.org/pdf/1706.03762.pdf"},
		{"https://aclanthology.org/2023.acl-long.1/", "https://aclanthology.org/2023.acl-long.1.pdf"},
		{"https://aclanthology.org/2023.acl-long.1", "https://aclanthology.org/2023.acl-long.1.pdf"},
		{"https://openreview.net/forum?id=aBcD123", "https://openreview.net/pdf?id=aBcD123"},
		{"https://dl.acm.org/doi/10.1145/3292500.3330919", "https://dl.acm.org/doi/pdf/10.1145/3292500.3330919?download=true"},

		// Rules must not fire outside their host or path shape
		{"https://arxiv.org/list/cs.CL/recent", ""},
		{"https://example.org/abs/2301.00001", ""},
		{"https://openreview.net/forum", ""},
	}

	for _, tt := range tests {
		t.Run(tt.pageURL, func(t *testing.T) {
			page := mustParse(t, tt.pageURL)
			if got := resolveKnownSite(page); got != tt.want {
				t.Errorf("resolveKnownSite(%q) = %q, want %q", tt.pageURL, got, tt.want)
			}
		})
	}
}

func TestLocateOverrideWins(t *testing.T) {
	locSvc, fetcher := newTestLocator(nil)

	got, err := locSvc.Locate(context.Background(), "https://example.com/papers/42", "files/paper.pdf")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://example.com/papers/files/paper.pdf" {
		t.Errorf("Locate = %q, want override resolved against page URL", got)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("override must not trigger a page fetch")
	}
}

func TestLocateDirectPDFShortCircuit(t *testing.T) {
	locSvc, fetcher := newTestLocator(nil)

	got, err := locSvc.Locate(context.Background(), "https://example.com/paper.pdf", "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://example.com/paper.pdf" {
		t.Errorf("Locate = %q, want page URL unchanged", got)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("direct PDF page URL must not trigger a page fetch")
	}
}

func TestLocateKnownSiteSkipsFetch(t *testing.T) {
	locSvc, fetcher := newTestLocator(nil)

	got, err := locSvc.Locate(context.Background(), "https://arxiv.org/abs/2301.00001", "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://arxiv.org/pdf/2301.00001.pdf" {
		t.Errorf("Locate = %q, want arxiv PDF sibling", got)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("known-site rule must short-circuit the page fetch")
	}
}

func TestDiscoverRelativeAnchor(t *testing.T) {
	pageURL := "https://host/x/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><body><a href="paper.pdf">paper</a></body></html>`,
	})

	got, err := locSvc.Locate(context.Background(), pageURL, "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://host/x/paper.pdf" {
		t.Errorf("Locate = %q, want relative href resolved", got)
	}
}

func TestDiscoverExactSuffixBeatsEarlierCandidate(t *testing.T) {
	pageURL := "https://host/paper/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><body>
			<a href="/download/123">Download PDF</a>
			<a href="/files/real.pdf">full text</a>
		</body></html>`,
	})

	got, err := locSvc.Locate(context.Background(), pageURL, "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://host/files/real.pdf" {
		t.Errorf("Locate = %q, want exact .pdf suffix over earlier candidate", got)
	}
}

func TestDiscoverCitationMeta(t *testing.T) {
	pageURL := "https://host/paper/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><head>
			<meta name="citation_pdf_url" content="https://cdn.host/papers/77.pdf">
		</head><body><a href="/about">About</a></body></html>`,
	})

	got, err := locSvc.Locate(context.Background(), pageURL, "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != "https://cdn.host/papers/77.pdf" {
		t.Errorf("Locate = %q, want citation_pdf_url content", got)
	}
}

func TestDiscoverLinkElement(t *testing.T) {
	pageURL := "https://host/paper/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><head>
			<link rel="alternate" type="application/pdf" href="/render/77">
		</head><body></body></html>`,
	})

	got, err := locSvc.Locate(context.Background(), pageURL, "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	// No exact .pdf suffix anywhere, so the link element candidate wins
	if got != "https://host/render/77" {
		t.Errorf("Locate = %q, want link element candidate", got)
	}
}

func TestDiscoverCandidateFallbackOrder(t *testing.T) {
	pageURL := "https://host/paper/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><body>
			<a href="/download/1">Get the PDF</a>
			<a href="/download/2">PDF mirror</a>
			<a href="/download/1">Get the PDF</a>
		</body></html>`,
	})

	got, err := locSvc.Locate(context.Background(), pageURL, "")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	// Duplicates are collapsed and the first candidate wins
	if got != "https://host/download/1" {
		t.Errorf("Locate = %q, want first deduplicated candidate", got)
	}
}

func TestDiscoverNotFound(t *testing.T) {
	pageURL := "https://host/paper/"
	locSvc, _ := newTestLocator(map[string]string{
		pageURL: `<html><body><a href="/about">About us</a></body></html>`,
	})

	_, err := locSvc.Locate(context.Background(), pageURL, "")
	if !errors.Is(err, interfaces.ErrNoPDFFound) {
		t.Fatalf("Locate = %v, want ErrNoPDFFound", err)
	}
}
