package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder generates embeddings through the completion endpoint. It
// satisfies vector.Embedder.
type Embedder struct {
	Client Client
	Model  openai.EmbeddingModel
}

func NewEmbedder(client Client, model string) *Embedder {
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	return &Embedder{Client: client, Model: openai.EmbeddingModel(model)}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.Client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return resp.Data[0].Embedding, nil
}
