package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIProvider calls the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client openai.Client
	model  string
	dims   int
}

type openAIOptions struct {
	model   string
	dims    int
	baseURL string
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*openAIOptions)

// WithModel overrides the embedding model.
func WithModel(model string) OpenAIOption {
	return func(o *openAIOptions) { o.model = model }
}

// WithDimensions asks the API for vectors of length dims.
func WithDimensions(dims int) OpenAIOption {
	return func(o *openAIOptions) { o.dims = dims }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// NewOpenAIProvider creates a provider authenticated with apiKey. The SDK's
// own retries are disabled; Service owns the retry policy.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	o := openAIOptions{model: DefaultOpenAIModel, dims: Dimensions}
	for _, opt := range opts {
		opt(&o)
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		model:  o.model,
		dims:   o.dims,
	}
}

func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if p.dims > 0 {
		params.Dimensions = openai.Int(int64(p.dims))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding: openai: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: openai: no data in response")
	}

	data := resp.Data[0].Embedding
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out, nil
}
