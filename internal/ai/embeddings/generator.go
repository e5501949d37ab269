package embeddings

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Dimensions of text-embedding-3-small, matching the vector(1536) column.
const Dimensions = 1536

// maxInputRunes keeps long CV transcripts under the model's token limit.
const maxInputRunes = 24000

// Generator turns extracted CV text into embeddings for similarity search.
type Generator struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewGenerator(apiKey string, opts ...option.RequestOption) *Generator {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Generator{
		client: &client,
		model:  openai.EmbeddingModelTextEmbedding3Small,
	}
}

// GenerateEmbedding creates an embedding vector for text.
func (g *Generator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = clip(strings.TrimSpace(text), maxInputRunes)
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: g.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
