package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"golang.org/x/time/rate"
)

// maxPDFSize caps PDF downloads at 100 MB
const maxPDFSize = 100 * 1024 * 1024

// Client performs outbound page and PDF fetches with a browser-style
// user agent and per-host rate limiting
type Client struct {
	httpClient  *http.Client
	userAgent   string
	pageTimeout time.Duration
	pdfTimeout  time.Duration
	delay       time.Duration
	limiters    map[string]*rate.Limiter
	mu          sync.Mutex
	logger      arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.Fetcher = (*Client)(nil)

// NewClient creates a new fetch client from HTTP config
func NewClient(config *common.HTTPConfig, logger arbor.ILogger) *Client {
	return &Client{
		// Per-request deadlines come from contexts, not a client timeout
		httpClient:  &http.Client{},
		userAgent:   config.UserAgent,
		pageTimeout: config.PageTimeoutDuration(),
		pdfTimeout:  config.PDFTimeoutDuration(),
		delay:       config.RequestDelayDuration(),
		limiters:    make(map[string]*rate.Limiter),
		logger:      logger,
	}
}

// FetchPage retrieves the HTML of a paper page
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	body, err := c.get(ctx, pageURL, "", c.pageTimeout)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DownloadPDF retrieves PDF bytes, sending the page URL as referer.
// The bytes must parse as an actual PDF - a permissive locator guess that
// landed on an HTML error page fails here instead of at upload.
func (c *Client) DownloadPDF(ctx context.Context, pdfURL, referer string) ([]byte, error) {
	c.logger.Info().Str("pdf_url", pdfURL).Msg("Downloading PDF")

	data, err := c.get(ctx, pdfURL, referer, c.pdfTimeout)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body from %s", pdfURL)
	}

	if err := validatePDF(data); err != nil {
		return nil, fmt.Errorf("downloaded content is not a valid PDF: %w", err)
	}

	c.logger.Info().Int("bytes", len(data)).Msg("PDF downloaded")
	return data, nil
}

// get performs a rate-limited GET with the configured user agent
func (c *Client) get(ctx context.Context, rawURL, referer string, timeout time.Duration) ([]byte, error) {
	if err := c.waitForHost(ctx, rawURL); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request to %s failed with status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	if len(data) > maxPDFSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", rawURL, maxPDFSize)
	}

	return data, nil
}

// waitForHost blocks until the per-host rate limit allows another request
func (c *Client) waitForHost(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return nil // no host, no rate limiting
	}

	c.mu.Lock()
	limiter, ok := c.limiters[parsed.Hostname()]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.delay), 1)
		c.limiters[parsed.Hostname()] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

// validatePDF checks the magic header, then lets pdfcpu parse the document
func validatePDF(data []byte) error {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return fmt.Errorf("missing %%PDF header")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if _, err := api.ReadContext(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("pdf parse failed: %w", err)
	}
	return nil
}
