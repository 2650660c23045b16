package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
	ctxDL  bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	_, f.ctxDL = ctx.Deadline()
	if len(parts) == 1 {
		if t, ok := parts[0].(genai.Text); ok {
			f.prompt = string(t)
		}
	}
	return f.resp, f.err
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("Jane Doe, 5 years Go")
	assert.True(t, strings.HasPrefix(p, "Please analyze this resume"))
	assert.Contains(t, p, "6. Areas of specialization")
	assert.True(t, strings.HasSuffix(p, "Resume text:\nJane Doe, 5 years Go"))
}

func TestSummarize(t *testing.T) {
	m := &fakeModel{resp: textResponse(genai.Text("Senior Go engineer. "), genai.Text("Strong in distributed systems.\n"))}
	g := &Gemini{model: m, name: DefaultModel, timeout: time.Minute}

	got, err := g.Summarize(context.Background(), "resume body")
	require.NoError(t, err)
	assert.Equal(t, "Senior Go engineer. Strong in distributed systems.", got)
	assert.Equal(t, Prompt("resume body"), m.prompt)
	assert.True(t, m.ctxDL, "request must carry a deadline")
	assert.Equal(t, DefaultModel, g.Model())
	assert.NoError(t, g.Close())
}

func TestSummarizeEmptyText(t *testing.T) {
	m := &fakeModel{}
	g := &Gemini{model: m}
	_, err := g.Summarize(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, m.prompt, "model must not be called")
}

func TestSummarizeModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	g := &Gemini{model: &fakeModel{err: boom}}
	_, err := g.Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestSummarizeNoContent(t *testing.T) {
	for name, resp := range map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"nil content":   {Candidates: []*genai.Candidate{{}}},
		"blank text":    textResponse(genai.Text("  ")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := (&Gemini{model: &fakeModel{resp: resp}}).Summarize(context.Background(), "x")
			assert.ErrorIs(t, err, ErrNoContent)
		})
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
