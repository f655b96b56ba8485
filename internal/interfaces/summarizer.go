package interfaces

import (
	"context"
)

// Summarizer is the external summarization collaborator: upload a binary
// file, extract text against it with a prompt, delete it when done. The
// implementation is an opaque API client - failures are retryable only
// inside the implementation, never by callers.
type Summarizer interface {
	// Upload stores the file with the provider and returns an opaque handle
	Upload(ctx context.Context, data []byte, filename string) (string, error)

	// Extract runs the given prompt against the uploaded file and returns
	// the normalized response text
	Extract(ctx context.Context, fileID, model, prompt string) (string, error)

	// Delete removes the uploaded file. Best-effort - callers log failures
	// and move on.
	Delete(ctx context.Context, fileID string) error
}

// SummarizerFactory builds a Summarizer bound to a per-job credential.
// Jobs carry their own API key, so clients cannot be shared across jobs.
type SummarizerFactory func(apiKey string) (Summarizer, error)
