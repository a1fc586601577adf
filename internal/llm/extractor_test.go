package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt(t *testing.T) {
	inputText := "A documentation page about building web dashboards with React."

	prompt := BuildExtractionPrompt(IdeaContextSchema(), inputText)

	assert.Contains(t, prompt, inputText)
	assert.Contains(t, prompt, "title")
	assert.Contains(t, prompt, "key_points")
	assert.Contains(t, prompt, "technologies")
	assert.Contains(t, prompt, "(required)")
	assert.Contains(t, prompt, "Return ONLY valid JSON")
}

func TestBuildExtractionPrompt_DefaultsTypeHint(t *testing.T) {
	schema := ExtractionSchema{
		Description: "Extract the thing.",
		Fields:      []SchemaField{{Name: "thing"}},
	}

	prompt := BuildExtractionPrompt(schema, "input")
	assert.Contains(t, prompt, `"thing": string`)
}
