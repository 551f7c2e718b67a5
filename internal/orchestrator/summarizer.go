package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"fleetdesk_backend/internal/session"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const maxSummaryRunes = 1500

// Summarizer folds dropped history turns into the running summary using the
// reasoning model. It satisfies session.Summarizer.
type Summarizer struct {
	llm model.LLM
}

// NewSummarizer creates a model-backed summarizer.
func NewSummarizer(llm model.LLM) *Summarizer {
	return &Summarizer{llm: llm}
}

// Summarize returns an updated summary. Errors are left to the caller, which
// falls back to truncation.
func (s *Summarizer) Summarize(ctx context.Context, previous string, dropped []session.Turn) (string, error) {
	var b strings.Builder
	if p := strings.TrimSpace(previous); p != "" {
		fmt.Fprintf(&b, "Existing summary:\n%s\n\n", p)
	}
	b.WriteString("Conversation:\n")
	for _, t := range dropped {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, strings.TrimSpace(t.Text))
	}

	req := &model.LLMRequest{
		Model: s.llm.Name(),
		Contents: []*genai.Content{{
			Role:  string(genai.RoleUser),
			Parts: []*genai.Part{{Text: b.String()}},
		}},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Role:  string(genai.RoleUser),
				Parts: []*genai.Part{{Text: summaryPrompt}},
			},
			Temperature: float32Ptr(0),
		},
	}

	var summary string
	for resp, err := range s.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("summarize history: %w", err)
		}
		if resp != nil && resp.Content != nil {
			summary = textOf(resp.Content)
		}
	}
	if summary == "" {
		return "", fmt.Errorf("summarize history: %w", errEmptyResponse)
	}
	if runes := []rune(summary); len(runes) > maxSummaryRunes {
		summary = string(runes[:maxSummaryRunes])
	}
	return summary, nil
}

var _ session.Summarizer = (*Summarizer)(nil)
