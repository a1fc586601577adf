package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/scaffold-agent/internal/llm"
)

// maxRawContextLen is the size above which a fetched page is condensed via
// the LLM instead of being pasted into the brief prompt verbatim.
const maxRawContextLen = 6000

// IdeaContext is the condensed form of a fetched reference page.
type IdeaContext struct {
	Title        string   `json:"title,omitempty"`
	KeyPoints    []string `json:"key_points"`
	Technologies []string `json:"technologies,omitempty"`
}

// Render flattens the context into the text form the brief prompt consumes.
func (c *IdeaContext) Render() string {
	var sb strings.Builder
	if c.Title != "" {
		sb.WriteString(c.Title)
		sb.WriteString("\n")
	}
	for _, p := range c.KeyPoints {
		sb.WriteString("- ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	if len(c.Technologies) > 0 {
		sb.WriteString("Technologies: ")
		sb.WriteString(strings.Join(c.Technologies, ", "))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SummarizeContext condenses one fetched page into an IdeaContext.
func SummarizeContext(ctx context.Context, client llm.Client, text string) (*IdeaContext, error) {
	schema := llm.IdeaContextSchema()
	prompt := llm.BuildExtractionPrompt(schema, text)

	raw, err := client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("summarizing context: %w", err)
	}

	var c IdeaContext
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("parsing context summary: %w", err)
	}
	return &c, nil
}

// CondenseContext returns page text sized for the brief prompt: short pages
// pass through untouched, long ones are summarized. Summarization failures
// fall back to a hard truncation so a flaky model never loses the page.
func CondenseContext(ctx context.Context, client llm.Client, text string) string {
	if len(text) <= maxRawContextLen || client == nil {
		return text
	}
	summary, err := SummarizeContext(ctx, client, text)
	if err != nil {
		return truncateAtRune(text, maxRawContextLen)
	}
	return summary.Render()
}

// truncateAtRune cuts text to at most max bytes without splitting a UTF-8
// sequence, so the fallback never feeds a mangled rune into the prompt.
func truncateAtRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
