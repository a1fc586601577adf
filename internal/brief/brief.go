// Package brief turns a freeform project idea into the structured brief the
// pipeline runs on. Derivation goes through the LLM; a deterministic fallback
// covers the no-API-key path.
package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/scaffold-agent/internal/llm"
	"github.com/jonathan/scaffold-agent/internal/prompts"
)

// maxSlugLength bounds generated slugs so they stay usable as directory and
// board names.
const maxSlugLength = 48

// ProjectBrief is the structured form of a project idea.
type ProjectBrief struct {
	Name     string   `json:"name" validate:"required,min=1"`
	Slug     string   `json:"slug" validate:"required,min=1"`
	Summary  string   `json:"summary"`
	Features []string `json:"features"`
	Stack    []string `json:"stack,omitempty"`
}

// Validate validates the ProjectBrief using the validator.
func (b *ProjectBrief) Validate() error {
	validate := validator.New()
	return validate.Struct(b)
}

// Derive asks the LLM to turn an idea (plus optional reference context) into
// a ProjectBrief. The returned brief always carries a usable slug even when
// the model omits one.
func Derive(ctx context.Context, client llm.Client, idea, refContext string) (*ProjectBrief, error) {
	template, err := prompts.Get("scaffold.json", "derive-brief")
	if err != nil {
		return nil, fmt.Errorf("loading brief prompt: %w", err)
	}
	prompt := prompts.Format(template, map[string]string{
		"Idea":    idea,
		"Context": refContext,
	})

	raw, err := client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("deriving brief: %w", err)
	}

	var b ProjectBrief
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("parsing brief response: %w", err)
	}

	// A model occasionally returns the brief without a name. One cheap
	// follow-up usually repairs it; validation below catches the rest.
	if b.Name == "" {
		b.Name = fallbackName(ctx, client, idea)
	}

	if b.Slug == "" {
		b.Slug = Slugify(b.Name)
	}
	b.Slug = Slugify(b.Slug)

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid brief: %w", err)
	}
	return &b, nil
}

// fallbackName asks the lite tier for a bare project name. Errors collapse to
// an empty string; the caller's validation decides whether that is fatal.
func fallbackName(ctx context.Context, client llm.Client, idea string) string {
	template, err := prompts.Get("scaffold.json", "name-fallback")
	if err != nil {
		return ""
	}
	prompt := prompts.Format(template, map[string]string{"Idea": idea})
	name, err := client.GenerateContent(ctx, prompt, llm.TierLite)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

// Fallback builds a brief from the idea text alone, without an LLM. The name
// is the idea's leading words and the summary is the idea itself.
func Fallback(idea string) *ProjectBrief {
	words := strings.Fields(idea)
	nameWords := words
	if len(nameWords) > 4 {
		nameWords = nameWords[:4]
	}
	name := strings.Join(nameWords, " ")
	if name == "" {
		name = "Untitled Project"
	}
	return &ProjectBrief{
		Name:    name,
		Slug:    Slugify(name),
		Summary: idea,
	}
}

// Slugify lowercases s and replaces every run of non-alphanumeric characters
// with a single hyphen.
func Slugify(s string) string {
	var sb strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimSuffix(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "untitled-project"
	}
	return slug
}
