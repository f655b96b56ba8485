package summarizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

const (
	// baseBackoff is the exponential backoff base for rate-limit retries
	baseBackoff = 2 * time.Second

	// maxBackoff caps the backoff wait
	maxBackoff = 32 * time.Second
)

// ErrAPIKeyMissing is returned when no credential is available for a job
var ErrAPIKeyMissing = errors.New("summarizer API key not set")

// Client implements interfaces.Summarizer against the OpenAI files and
// responses APIs. One client is created per job, bound to that job's
// credential.
type Client struct {
	client     openai.Client
	maxRetries int
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.Summarizer = (*Client)(nil)

// NewClient creates a summarizer client with the given API key
func NewClient(apiKey string, maxRetries int, logger arbor.ILogger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// NewFactory returns a SummarizerFactory closing over config defaults
func NewFactory(config *common.SummarizerConfig, logger arbor.ILogger) interfaces.SummarizerFactory {
	return func(apiKey string) (interfaces.Summarizer, error) {
		if apiKey == "" {
			apiKey = config.APIKey
		}
		return NewClient(apiKey, config.MaxRetries, logger)
	}
}

// Upload stores the PDF with the provider and returns the file handle
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	c.logger.Info().Str("filename", filename).Int("bytes", len(data)).Msg("Uploading PDF to summarizer")

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(data), filename, "application/pdf"),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("file upload failed: %w", err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("file upload returned no handle")
	}

	c.logger.Debug().Str("file_id", file.ID).Msg("PDF uploaded")
	return file.ID, nil
}

// Extract runs the prompt against the uploaded file and returns the
// normalized response text. Rate-limit errors are retried with capped
// exponential backoff; all other failures surface immediately.
func (c *Client) Extract(ctx context.Context, fileID, model, prompt string) (string, error) {
	c.logger.Info().Str("model", model).Msg("Requesting extraction from summarizer")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:        shared.ResponsesModel(model),
			Instructions: openai.String(SystemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemUnionParam{
						OfMessage: &responses.EasyInputMessageParam{
							Role: responses.EasyInputMessageRoleUser,
							Content: responses.EasyInputMessageContentUnionParam{
								OfInputItemContentList: responses.ResponseInputMessageContentListParam{
									responses.ResponseInputContentUnionParam{
										OfInputText: &responses.ResponseInputTextParam{Text: prompt},
									},
									responses.ResponseInputContentUnionParam{
										OfInputFile: &responses.ResponseInputFileParam{
											FileID: openai.String(fileID),
										},
									},
								},
							},
						},
					},
				},
			},
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Summarizer rate limited, backing off")
				continue
			}
			return "", fmt.Errorf("extraction request failed: %w", err)
		}

		return collapseOutput(chunksFromResponse(resp), resp.OutputText())
	}

	return "", fmt.Errorf("extraction request failed after %d retries: %w", c.maxRetries, lastErr)
}

// Delete removes the uploaded file handle. Best-effort by contract.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	if _, err := c.client.Files.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("file delete failed: %w", err)
	}
	c.logger.Debug().Str("file_id", fileID).Msg("Uploaded file deleted")
	return nil
}

// chunksFromResponse flattens the typed response output into outputChunks
func chunksFromResponse(resp *responses.Response) []outputChunk {
	var chunks []outputChunk
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			chunks = append(chunks, outputChunk{
				Type: string(content.Type),
				Text: content.Text,
			})
		}
	}
	return chunks
}

// isRateLimitError reports whether the error is an HTTP 429 from the API
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
