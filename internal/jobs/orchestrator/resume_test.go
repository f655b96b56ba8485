package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/jobs/delegate"
	"github.com/ternarybob/scribo/internal/models"
)

// Stub collaborators for running the real delegate against the real
// orchestrator. The orchestrator is the delegate's reporter here, exactly
// as wired in the application.

type stubLocator struct{}

func (stubLocator) Locate(_ context.Context, _, _ string) (string, error) {
	return "https://example.com/paper.pdf", nil
}

type stubFetcher struct{}

func (stubFetcher) FetchPage(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (stubFetcher) DownloadPDF(_ context.Context, _, _ string) ([]byte, error) {
	return []byte("%PDF-1.7 payload"), nil
}

type stubSummarizer struct{}

func (stubSummarizer) Upload(_ context.Context, _ []byte, _ string) (string, error) {
	return "file-1", nil
}

func (stubSummarizer) Extract(_ context.Context, _, _, _ string) (string, error) {
	return "Paper Title", nil
}

func (stubSummarizer) Delete(_ context.Context, _ string) error {
	return nil
}

func waitForTerminal(t *testing.T, storage interfaces.JobStorage) *models.PaperJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, err := storage.Get(context.Background())
		require.NoError(t, err)
		if stored.Status.IsTerminal() {
			return stored
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never reached a terminal state, still %s", stored.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Resume hands the persisted job to the real delegate, whose reporter is
// the orchestrator itself. ResumeOnStartup must return promptly while the
// pipeline runs to completion in the background.
func TestResumeOnStartupRunsPipelineThroughRealDelegate(t *testing.T) {
	storage := &memStorage{}
	svc := NewService(storage, nil, arbor.NewLogger())

	factory := func(string) (interfaces.Summarizer, error) {
		return stubSummarizer{}, nil
	}
	svc.SetDelegate(delegate.NewService(stubLocator{}, stubFetcher{}, factory, svc, arbor.NewLogger()))

	job := models.NewPaperJob("job_prev", models.JobContext{
		PageURL: "https://arxiv.org/abs/2301.00001",
		Project: "papers",
		BaseURL: "https://scrapbox.io",
		Model:   "gpt-4.1-mini",
		APIKey:  "sk-test",
	})
	require.NoError(t, storage.Save(context.Background(), job))

	done := make(chan error, 1)
	go func() { done <- svc.ResumeOnStartup(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ResumeOnStartup did not return")
	}

	stored := waitForTerminal(t, storage)
	assert.Equal(t, models.JobStatusSuccess, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "Paper Title", stored.Result.Title)
	assert.Empty(t, stored.Context.APIKey)

	var resumeLogged bool
	for _, entry := range stored.Logs {
		if strings.Contains(entry.Message, "Resuming pipeline after host restart") {
			resumeLogged = true
		}
	}
	assert.True(t, resumeLogged, "resume must be recorded in the job log")
}
