package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openAIEmbeddingDimension matches entry_vectors.embedding's column width
// (768), requested via EmbeddingRequest.Dimensions so text-embedding-3-small's
// native 1536-dim output is truncated server-side rather than stored wide.
const openAIEmbeddingDimension = 768

// OpenAIProvider calls the OpenAI embeddings endpoint directly, in place
// of the teacher's gRPC hop to a separate AI microservice: entries need
// only a vector, not a chat completion, so the HTTP client covers the
// concern with one fewer moving part.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      p.model,
		Dimensions: openAIEmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

func (p *OpenAIProvider) Dimension() int {
	return openAIEmbeddingDimension
}
