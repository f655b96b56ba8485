package delegate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type fakeLocator struct {
	url string
	err error
}

func (f *fakeLocator) Locate(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

type fakeFetcher struct {
	data    []byte
	err     error
	referer string
	calls   int
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeFetcher) DownloadPDF(_ context.Context, _, referer string) ([]byte, error) {
	f.calls++
	f.referer = referer
	return f.data, f.err
}

type fakeSummarizer struct {
	mu        sync.Mutex
	uploadErr error
	titleText string
	titleErr  error
	summText  string
	summErr   error
	deleted   []string
	prompts   []string
}

func (f *fakeSummarizer) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "file-123", nil
}

func (f *fakeSummarizer) Extract(_ context.Context, _, _, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	n := len(f.prompts)
	f.mu.Unlock()
	if n == 1 {
		return f.titleText, f.titleErr
	}
	return f.summText, f.summErr
}

func (f *fakeSummarizer) Delete(_ context.Context, fileID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, fileID)
	f.mu.Unlock()
	return nil
}

// recordingReporter captures delegate callbacks and signals when the run
// reaches a terminal report
type recordingReporter struct {
	mu     sync.Mutex
	logs   []string
	result *models.JobResult
	failed string
	abort  string
	done   chan struct{}
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{done: make(chan struct{})}
}

func (r *recordingReporter) AppendLog(_ string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, message)
}

func (r *recordingReporter) Complete(_ string, result models.JobResult) {
	r.mu.Lock()
	r.result = &result
	r.mu.Unlock()
	close(r.done)
}

func (r *recordingReporter) Fail(_ string, message string) {
	r.mu.Lock()
	r.failed = message
	r.mu.Unlock()
	close(r.done)
}

func (r *recordingReporter) Abort(_ string, reason string) {
	r.mu.Lock()
	r.abort = reason
	r.mu.Unlock()
	close(r.done)
}

func (r *recordingReporter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
}

type staticToken struct {
	flagged bool
	reason  string
}

func (s staticToken) Cancelled() (bool, string) { return s.flagged, s.reason }

func testJob(id string) *models.PaperJob {
	return models.NewPaperJob(id, models.JobContext{
		PageURL: "https://arxiv.org/abs/2301.00001",
		Project: "papers",
		BaseURL: "https://scrapbox.io",
		Model:   "gpt-4.1-mini",
		APIKey:  "sk-test",
	})
}

func newTestService(loc *fakeLocator, fetch *fakeFetcher, summ *fakeSummarizer, rep *recordingReporter) *Service {
	factory := func(apiKey string) (interfaces.Summarizer, error) {
		if apiKey == "" {
			return nil, errors.New("missing key")
		}
		return summ, nil
	}
	return NewService(loc, fetch, factory, rep, arbor.NewLogger())
}

func TestPipelineSuccess(t *testing.T) {
	loc := &fakeLocator{url: "https://arxiv.org/pdf/2301.00001.pdf"}
	fetch := &fakeFetcher{data: []byte("%PDF-1.7 payload")}
	summ := &fakeSummarizer{
		titleText: "Attention Is All You Need\nextra line",
		summText:  `{"summary": "A concise summary."}`,
	}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, summ, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	rep.wait(t)

	require.NotNil(t, rep.result)
	assert.Equal(t, "Attention Is All You Need", rep.result.Title)
	assert.Equal(t, len([]rune("A concise summary.")), rep.result.SummaryLength)
	assert.Contains(t, rep.result.NoteURL, "https://scrapbox.io/papers/")
	assert.Contains(t, rep.result.NoteURL, "?body=")

	// referer is the paper page, not the PDF URL
	assert.Equal(t, "https://arxiv.org/abs/2301.00001", fetch.referer)

	// uploaded file is cleaned up after success
	assert.Equal(t, []string{"file-123"}, summ.deleted)
}

func TestPipelineLocateFailure(t *testing.T) {
	loc := &fakeLocator{err: interfaces.ErrNoPDFFound}
	fetch := &fakeFetcher{}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, &fakeSummarizer{}, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	rep.wait(t)

	assert.Contains(t, rep.failed, "Could not locate a PDF")
	assert.Zero(t, fetch.calls)
}

func TestPipelineDownloadFailure(t *testing.T) {
	loc := &fakeLocator{url: "https://example.com/paper.pdf"}
	fetch := &fakeFetcher{err: errors.New("status 403")}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, &fakeSummarizer{}, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	rep.wait(t)

	assert.Contains(t, rep.failed, "PDF download failed")
}

func TestPipelineExtractionFailureStillDeletesFile(t *testing.T) {
	loc := &fakeLocator{url: "https://example.com/paper.pdf"}
	fetch := &fakeFetcher{data: []byte("%PDF-")}
	summ := &fakeSummarizer{titleErr: errors.New("rate limited")}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, summ, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	rep.wait(t)

	assert.Contains(t, rep.failed, "Title extraction failed")
	assert.Equal(t, []string{"file-123"}, summ.deleted)
}

func TestPipelineEmptySummaryFails(t *testing.T) {
	loc := &fakeLocator{url: "https://example.com/paper.pdf"}
	fetch := &fakeFetcher{data: []byte("%PDF-")}
	summ := &fakeSummarizer{titleText: "Title", summText: "   "}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, summ, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	rep.wait(t)

	assert.Contains(t, rep.failed, "empty summary")
}

func TestCancelBeforeFirstStepSkipsNetwork(t *testing.T) {
	loc := &fakeLocator{url: "https://example.com/paper.pdf"}
	fetch := &fakeFetcher{data: []byte("%PDF-")}
	rep := newRecordingReporter()
	svc := newTestService(loc, fetch, &fakeSummarizer{}, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{flagged: true, reason: "user cancelled"}))
	rep.wait(t)

	assert.Equal(t, "user cancelled", rep.abort)
	assert.Zero(t, fetch.calls)
	for _, line := range rep.logs {
		assert.False(t, strings.HasPrefix(line, "Resolv"), "no pipeline step should have started")
	}
}

func TestSecondJobWhileBusyReturnsErrDelegateBusy(t *testing.T) {
	// a locator that blocks keeps the first job active
	started := make(chan struct{})
	release := make(chan struct{})
	loc := &blockingLocator{started: started, release: release}
	rep := newRecordingReporter()
	svc := newTestService2(loc, &fakeFetcher{err: errors.New("stop here")}, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	<-started

	err := svc.Run(context.Background(), testJob("job_2"), false, staticToken{})
	assert.ErrorIs(t, err, interfaces.ErrDelegateBusy)

	// same-id resume is a no-op success
	assert.NoError(t, svc.Run(context.Background(), testJob("job_1"), true, staticToken{}))

	close(release)
	rep.wait(t)
}

type blockingLocator struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingLocator) Locate(_ context.Context, _, _ string) (string, error) {
	close(b.started)
	<-b.release
	return "https://example.com/paper.pdf", nil
}

func newTestService2(loc interfaces.PDFLocator, fetch *fakeFetcher, rep *recordingReporter) *Service {
	factory := func(string) (interfaces.Summarizer, error) {
		return &fakeSummarizer{}, nil
	}
	return NewService(loc, fetch, factory, rep, arbor.NewLogger())
}

func TestNotifyCancelObservedAtNextBoundary(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	loc := &blockingLocator{started: started, release: release}
	fetch := &fakeFetcher{data: []byte("%PDF-")}
	rep := newRecordingReporter()
	svc := newTestService2(loc, fetch, rep)

	require.NoError(t, svc.Run(context.Background(), testJob("job_1"), false, staticToken{}))
	<-started
	svc.NotifyCancel("job_1")
	close(release)
	rep.wait(t)

	assert.Equal(t, "cancel requested", rep.abort)
	assert.Zero(t, fetch.calls, "download must not start after the cancel hint")
}

func TestPdfFilename(t *testing.T) {
	assert.Equal(t, "2301.00001.pdf", pdfFilename("https://arxiv.org/pdf/2301.00001.pdf"))
	assert.Equal(t, "pdf.pdf", pdfFilename("https://openreview.net/pdf?id=abc"))
	assert.Equal(t, "1234.56.pdf", pdfFilename("https://dl.acm.org/doi/pdf/1234.56?download=true"))

	// the host must never leak into the filename
	assert.Equal(t, "paper.pdf", pdfFilename("https://example.com/"))
	assert.Equal(t, "paper.pdf", pdfFilename("https://example.com"))
}
