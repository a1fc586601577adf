package brief

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeContext(t *testing.T) {
	stub := &stubLLM{response: `{
		"title": "React Docs",
		"key_points": ["component model", "hooks for state"],
		"technologies": ["react", "jsx"]
	}`}

	c, err := SummarizeContext(context.Background(), stub, "long page text")
	require.NoError(t, err)

	assert.Equal(t, "React Docs", c.Title)
	assert.Len(t, c.KeyPoints, 2)
	assert.Contains(t, stub.prompt, "long page text")
}

func TestSummarizeContext_MalformedResponse(t *testing.T) {
	stub := &stubLLM{response: "nope"}

	_, err := SummarizeContext(context.Background(), stub, "text")
	assert.ErrorContains(t, err, "parsing context summary")
}

func TestIdeaContext_Render(t *testing.T) {
	c := &IdeaContext{
		Title:        "React Docs",
		KeyPoints:    []string{"component model"},
		Technologies: []string{"react"},
	}

	rendered := c.Render()
	assert.Contains(t, rendered, "React Docs")
	assert.Contains(t, rendered, "- component model")
	assert.Contains(t, rendered, "Technologies: react")
}

func TestCondenseContext_ShortPassesThrough(t *testing.T) {
	stub := &stubLLM{err: errors.New("should not be called")}

	out := CondenseContext(context.Background(), stub, "short text")
	assert.Equal(t, "short text", out)
}

func TestCondenseContext_LongSummarized(t *testing.T) {
	stub := &stubLLM{response: `{"title": "Docs", "key_points": ["the point"]}`}
	long := strings.Repeat("x", maxRawContextLen+1)

	out := CondenseContext(context.Background(), stub, long)
	assert.Contains(t, out, "- the point")
}

func TestCondenseContext_FailureTruncates(t *testing.T) {
	stub := &stubLLM{err: errors.New("quota exceeded")}
	long := strings.Repeat("x", maxRawContextLen+100)

	out := CondenseContext(context.Background(), stub, long)
	assert.Len(t, out, maxRawContextLen)
}

func TestCondenseContext_FailureKeepsRunesIntact(t *testing.T) {
	stub := &stubLLM{err: errors.New("quota exceeded")}
	// Position a multi-byte rune straddling the truncation point.
	long := strings.Repeat("x", maxRawContextLen-1) + strings.Repeat("é", 200)

	out := CondenseContext(context.Background(), stub, long)
	assert.LessOrEqual(t, len(out), maxRawContextLen)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
}

func TestTruncateAtRune(t *testing.T) {
	assert.Equal(t, "abc", truncateAtRune("abc", 10))
	assert.Equal(t, "ab", truncateAtRune("abcd", 2))
	// "é" is two bytes; a cut inside it backs off to the rune boundary.
	assert.Equal(t, "a", truncateAtRune("aé", 2))
	assert.Equal(t, "aé", truncateAtRune("aéb", 3))
}

func TestCondenseContext_NilClientPassesThrough(t *testing.T) {
	long := strings.Repeat("x", maxRawContextLen+1)
	out := CondenseContext(context.Background(), nil, long)
	assert.Equal(t, long, out)
}
