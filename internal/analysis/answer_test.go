package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-assistant/internal/domain"
)

func TestAnswer_UsesFirstContextChars(t *testing.T) {
	gen := &fakeGenerator{}
	a := NewAnswerer(gen, 0, domain.NopLogger())
	doc := strings.Repeat("a", DefaultContextChars) + "TAIL"

	answer, err := a.Answer(context.Background(), doc, "  What is the total? ")

	require.NoError(t, err)
	assert.Equal(t, "partial-1", answer)
	require.Len(t, gen.calls, 1)
	c := gen.calls[0]
	assert.False(t, c.streaming)
	assert.Empty(t, c.req.Text)
	assert.Equal(t, "Context: "+strings.Repeat("a", DefaultContextChars)+"\n\nQuestion: What is the total?", c.req.Instruction)
	assert.NotContains(t, c.req.Instruction, "TAIL")
}

func TestAnswer_ShortDocumentAndMultibyte(t *testing.T) {
	gen := &fakeGenerator{}
	a := NewAnswerer(gen, 4, domain.NopLogger())

	_, err := a.Answer(context.Background(), "héllo wörld", "q")

	require.NoError(t, err)
	assert.Equal(t, "Context: héll\n\nQuestion: q", gen.calls[0].req.Instruction)
}

func TestAnswer_Errors(t *testing.T) {
	gen := &fakeGenerator{failOn: 1, failWith: domain.InferenceError("boom", nil)}
	a := NewAnswerer(gen, 0, domain.NopLogger())

	_, err := a.Answer(context.Background(), "doc", "   ")
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	assert.Empty(t, gen.calls)

	_, err = a.Answer(context.Background(), "doc", "why?")
	assert.True(t, domain.IsType(err, domain.ErrorTypeInference))
	assert.Len(t, gen.calls, 1)
}
