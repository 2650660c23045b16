package embedding

import (
	"context"
	"errors"
	"net/http"

	"github.com/WessleyAI/resume-portal/pkg/ollama"
	"github.com/openai/openai-go/v3"
)

var (
	// ErrRateLimited marks a provider response that asked the caller to slow down.
	ErrRateLimited = errors.New("embedding: rate limited")
	// ErrBadDimensions is reported when a provider vector has the wrong length.
	ErrBadDimensions = errors.New("embedding: provider returned wrong dimensions")
)

// Provider is a remote embedding model.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// IsRateLimited reports whether err is a rate-limit response: ErrRateLimited,
// an OpenAI API error with status 429, or any error exposing HTTPStatus() 429.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	var st interface{ HTTPStatus() int }
	if errors.As(err, &st) {
		return st.HTTPStatus() == http.StatusTooManyRequests
	}
	return false
}

// OllamaProvider adapts an Ollama client to Provider.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider wraps c.
func NewOllamaProvider(c *ollama.Client) *OllamaProvider {
	return &OllamaProvider{client: c}
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, text)
}

func (p *OllamaProvider) Model() string { return p.client.Model() }
