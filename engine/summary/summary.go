// Package summary produces prose summaries of resumes with a generative model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

var (
	ErrEmptyText = errors.New("summary: resume text is required")
	ErrNoAPIKey  = errors.New("summary: no API key configured")
	ErrNoContent = errors.New("summary: model returned no text")
)

// Generator summarizes resume text.
type Generator interface {
	Summarize(ctx context.Context, text string) (string, error)
}

const promptHeader = `Please analyze this resume and provide a concise summary including:
1. Key skills and expertise
2. Years of experience
3. Educational background
4. Notable achievements
5. Career progression
6. Areas of specialization

Resume text:
`

// Prompt builds the analysis prompt for text.
func Prompt(text string) string {
	return promptHeader + text
}

// contentGenerator is satisfied by *genai.GenerativeModel.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   contentGenerator
	name    string
	timeout time.Duration
}

var _ Generator = (*Gemini)(nil)

// NewGemini connects to Gemini with apiKey. An empty model means DefaultModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("summary: create gemini client: %w", err)
	}
	return &Gemini{client: client, model: client.GenerativeModel(model), name: model, timeout: 60 * time.Second}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.name }

// Close releases the client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Summarize asks the model for a structured summary of text.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt(text)))
	if err != nil {
		return "", fmt.Errorf("summary: generate: %w", err)
	}
	out := responseText(resp)
	if out == "" {
		return "", ErrNoContent
	}
	return out, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
