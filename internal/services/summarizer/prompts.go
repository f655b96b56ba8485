package summarizer

// Fixed prompts for the two extraction passes. Kept as constants so every
// job runs the exact same instructions against the uploaded paper.
const (
	// SystemPrompt frames both extraction requests
	SystemPrompt = "You are a research assistant who writes concise, accurate summaries. " +
		"Convey the paper's main contributions faithfully and follow the requested format exactly."

	// TitlePrompt asks for the paper title alone; only the first line of
	// the response is used
	TitlePrompt = "Read the attached paper and reply with its exact title on a single line. " +
		"Do not add quotes, numbering, or any other text."

	// SummaryPrompt asks for the summary body. The model may reply with
	// plain text or a JSON object carrying a \"summary\" field.
	SummaryPrompt = "Read the attached paper and write a summary covering: the problem addressed, " +
		"the key idea of the proposed approach, the main results, and notable limitations. " +
		"Keep it under 400 words. Reply with either the summary text itself or a JSON object " +
		"of the form {\"title\": ..., \"summary\": ...}."
)
