package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// outputChunk is one text fragment of a provider response. The provider
// returns either a list of typed output items or a flat aggregate text
// field; both shapes funnel through collapseOutput so callers never probe
// response shapes themselves.
type outputChunk struct {
	Type string
	Text string
}

const chunkTypeOutputText = "output_text"

// collapseOutput joins the output_text chunks of a response, falling back
// to the flat aggregate text when no typed chunks are present
func collapseOutput(chunks []outputChunk, aggregateText string) (string, error) {
	var parts []string
	for _, chunk := range chunks {
		if chunk.Type != chunkTypeOutputText {
			continue
		}
		if trimmed := strings.TrimSpace(chunk.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	if len(parts) == 0 {
		if trimmed := strings.TrimSpace(aggregateText); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", fmt.Errorf("response contained no text output")
	}
	return text, nil
}

// FirstLine returns the first non-empty trimmed line of text
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// summaryEnvelope is the JSON shape some models wrap summaries in
type summaryEnvelope struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NormalizeSummary unwraps a JSON-shaped summary response. When the raw
// text is a JSON object with a non-empty "summary" field that field is
// used; anything else - including unparseable JSON - is returned verbatim.
// The second return is the title carried inside the envelope, if any.
func NormalizeSummary(raw string) (summary, envelopeTitle string) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, ""
	}

	var envelope summaryEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return trimmed, ""
	}

	if field := strings.TrimSpace(envelope.Summary); field != "" {
		return field, strings.TrimSpace(envelope.Title)
	}
	return trimmed, strings.TrimSpace(envelope.Title)
}
