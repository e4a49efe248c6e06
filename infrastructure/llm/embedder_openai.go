package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-qgen/internal/ports"
)

// OpenAIDefaultEmbeddingModel is used when the config leaves Model empty.
const OpenAIDefaultEmbeddingModel = string(openai.SmallEmbedding3)

// embeddingBatchSize caps the inputs sent in one embeddings call.
const embeddingBatchSize = 96

// OpenAIEmbedder implements ports.Embedder with the OpenAI embeddings
// endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	classifier *ErrorClassifier
}

var _ ports.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. Middleware in config is ignored.
func NewOpenAIEmbedder(config ClientConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	clientConfig, err := openAIClientConfig(config)
	if err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		classifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// Embed returns one vector per input, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(texts))
		if err := e.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, ports.NewModelError(e.model, "embed", err)
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string, dst [][]float32) error {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return e.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		if ctx.Err() != nil {
			return e.classifier.ClassifyContextError(err)
		}
		return NewProviderError("openai", ErrorTypeNetwork, 0, "embedding request failed", err)
	}

	if len(resp.Data) != len(texts) {
		return fmt.Errorf("%w: got %d embeddings for %d inputs", ports.ErrInvalidResponse, len(resp.Data), len(texts))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(dst) {
			return fmt.Errorf("%w: embedding index %d out of range", ports.ErrInvalidResponse, d.Index)
		}
		dst[d.Index] = d.Embedding
	}
	return nil
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.model }
