package delegate

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/notes"
	"github.com/ternarybob/scribo/internal/services/summarizer"
)

// Service runs the summarization pipeline for exactly one job at a time.
// It is created lazily, lives independently of the orchestrator's request
// handling, and reports every outcome through the JobReporter - the
// persisted job record is never touched from here.
type Service struct {
	locator       interfaces.PDFLocator
	fetcher       interfaces.Fetcher
	newSummarizer interfaces.SummarizerFactory
	reporter      interfaces.JobReporter
	logger        arbor.ILogger

	mu          sync.Mutex
	activeJobID string
	cancelHint  map[string]bool
}

// Compile-time interface assertion
var _ interfaces.ExecutionDelegate = (*Service)(nil)

// NewService creates a new execution delegate
func NewService(
	locator interfaces.PDFLocator,
	fetcher interfaces.Fetcher,
	newSummarizer interfaces.SummarizerFactory,
	reporter interfaces.JobReporter,
	logger arbor.ILogger,
) *Service {
	return &Service{
		locator:       locator,
		fetcher:       fetcher,
		newSummarizer: newSummarizer,
		reporter:      reporter,
		logger:        logger,
		cancelHint:    make(map[string]bool),
	}
}

// Run starts the pipeline for the job and returns immediately. A duplicate
// start for the job already running (a resume signal) is a no-op success;
// a start for a different job while busy is ErrDelegateBusy.
func (s *Service) Run(ctx context.Context, job *models.PaperJob, resume bool, token interfaces.CancelToken) error {
	s.mu.Lock()
	if s.activeJobID != "" {
		defer s.mu.Unlock()
		if s.activeJobID == job.ID {
			s.logger.Debug().Str("job_id", job.ID).Msg("Duplicate start for active job ignored")
			return nil
		}
		return interfaces.ErrDelegateBusy
	}
	s.activeJobID = job.ID
	delete(s.cancelHint, job.ID)
	s.mu.Unlock()

	// The pipeline outlives the start request, so it must not inherit the
	// request's cancellation. All reporter calls happen on the pipeline
	// goroutine - Run must never call back into the reporter while the
	// caller may still hold its own locks.
	go s.runPipeline(context.WithoutCancel(ctx), job.Clone(), resume, token)

	return nil
}

// NotifyCancel records a fast-path cancellation hint for the job. The
// polled token stays authoritative; this only shortens the window between
// a cancel request and the next step boundary.
func (s *Service) NotifyCancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelHint[jobID] = true
}

// cancelled combines the polled token with the local hint
func (s *Service) cancelled(jobID string, token interfaces.CancelToken) (bool, string) {
	if flagged, reason := token.Cancelled(); flagged {
		return true, reason
	}
	s.mu.Lock()
	hinted := s.cancelHint[jobID]
	s.mu.Unlock()
	if hinted {
		return true, "cancel requested"
	}
	return false, ""
}

// runPipeline drives the locate -> download -> upload -> extract ->
// finalize sequence. Each step is preceded by a cancellation check; the
// uploaded file is deleted in a cleanup phase no matter how the run ends.
func (s *Service) runPipeline(ctx context.Context, job *models.PaperJob, resume bool, token interfaces.CancelToken) {
	defer func() {
		s.mu.Lock()
		s.activeJobID = ""
		delete(s.cancelHint, job.ID)
		s.mu.Unlock()
	}()

	jobLogger := s.logger.WithCorrelationId(job.ID)

	if resume {
		s.reporter.AppendLog(job.ID, "Resuming pipeline after host restart")
	}

	if aborted := s.checkCancel(job, token); aborted {
		return
	}

	// Step 1: resolve the PDF URL
	s.reporter.AppendLog(job.ID, "Resolving PDF URL")
	pdfURL, err := s.locator.Locate(ctx, job.Context.PageURL, job.Context.PDFURL)
	if err != nil {
		jobLogger.Warn().Err(err).Msg("PDF resolution failed")
		s.reporter.Fail(job.ID, fmt.Sprintf("Could not locate a PDF: %v", err))
		return
	}
	s.reporter.AppendLog(job.ID, fmt.Sprintf("Resolved PDF URL: %s", pdfURL))

	if aborted := s.checkCancel(job, token); aborted {
		return
	}

	// Step 2: download the PDF bytes
	s.reporter.AppendLog(job.ID, "Downloading PDF")
	pdfData, err := s.fetcher.DownloadPDF(ctx, pdfURL, job.Context.PageURL)
	if err != nil {
		jobLogger.Warn().Err(err).Str("pdf_url", pdfURL).Msg("PDF download failed")
		s.reporter.Fail(job.ID, fmt.Sprintf("PDF download failed: %v", err))
		return
	}
	s.reporter.AppendLog(job.ID, fmt.Sprintf("Downloaded PDF (%d bytes)", len(pdfData)))

	if aborted := s.checkCancel(job, token); aborted {
		return
	}

	// Step 3: upload to the summarizer
	summ, err := s.newSummarizer(job.Context.APIKey)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to create summarizer client")
		s.reporter.Fail(job.ID, fmt.Sprintf("Summarizer unavailable: %v", err))
		return
	}

	s.reporter.AppendLog(job.ID, "Uploading PDF to summarizer")
	fileID, err := summ.Upload(ctx, pdfData, pdfFilename(pdfURL))
	if err != nil {
		jobLogger.Warn().Err(err).Msg("Upload failed")
		s.reporter.Fail(job.ID, fmt.Sprintf("Upload failed: %v", err))
		return
	}

	// Cleanup always runs once a file handle exists, success or not.
	// Deletion failures are logged, never fatal.
	defer func() {
		if err := summ.Delete(context.WithoutCancel(ctx), fileID); err != nil {
			jobLogger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to delete uploaded file")
			s.reporter.AppendLog(job.ID, "Cleanup: failed to delete uploaded file")
		}
	}()

	if aborted := s.checkCancel(job, token); aborted {
		return
	}

	// Step 4: extract the title; only the first line counts
	s.reporter.AppendLog(job.ID, "Extracting title")
	titleText, err := summ.Extract(ctx, fileID, job.Context.Model, summarizer.TitlePrompt)
	if err != nil {
		jobLogger.Warn().Err(err).Msg("Title extraction failed")
		s.reporter.Fail(job.ID, fmt.Sprintf("Title extraction failed: %v", err))
		return
	}
	title := summarizer.FirstLine(titleText)
	if title == "" {
		s.reporter.Fail(job.ID, "Summarizer returned an empty title")
		return
	}
	s.reporter.AppendLog(job.ID, fmt.Sprintf("Detected title: %s", title))

	if aborted := s.checkCancel(job, token); aborted {
		return
	}

	// Step 5: extract the summary, unwrapping a JSON envelope if present
	s.reporter.AppendLog(job.ID, "Extracting summary")
	summaryRaw, err := summ.Extract(ctx, fileID, job.Context.Model, summarizer.SummaryPrompt)
	if err != nil {
		jobLogger.Warn().Err(err).Msg("Summary extraction failed")
		s.reporter.Fail(job.ID, fmt.Sprintf("Summary extraction failed: %v", err))
		return
	}
	summary, envelopeTitle := summarizer.NormalizeSummary(summaryRaw)
	if summary == "" {
		s.reporter.Fail(job.ID, "Summarizer returned an empty summary")
		return
	}
	if envelopeTitle != "" && envelopeTitle != title {
		jobLogger.Info().Str("envelope_title", envelopeTitle).Msg("Summary response carried a differing title")
	}
	summaryLength := utf8.RuneCountInString(summary)
	s.reporter.AppendLog(job.ID, fmt.Sprintf("Received summary (%d characters)", summaryLength))

	// Step 6: build the destination note URL and report success
	noteURL := notes.BuildPageURL(job.Context.BaseURL, job.Context.Project, title, summary)
	s.reporter.Complete(job.ID, models.JobResult{
		Title:         title,
		SummaryLength: summaryLength,
		NoteURL:       noteURL,
	})
}

// checkCancel aborts the run when cancellation was requested; returns true
// when the pipeline must stop
func (s *Service) checkCancel(job *models.PaperJob, token interfaces.CancelToken) bool {
	flagged, reason := s.cancelled(job.ID, token)
	if !flagged {
		return false
	}
	if reason == "" {
		reason = "cancel requested"
	}
	s.reporter.Abort(job.ID, reason)
	return true
}

// pdfFilename derives an upload filename from the path of the PDF URL
func pdfFilename(pdfURL string) string {
	parsed, err := url.Parse(pdfURL)
	if err != nil {
		return "paper.pdf"
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" {
		return "paper.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base += ".pdf"
	}
	return base
}
