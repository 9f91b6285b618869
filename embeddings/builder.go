package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of descriptions sent per embedding request.
const DefaultBatchSize = 64

// Embedder encodes texts into vectors. The i-th vector belongs to texts[i].
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Description is the text embedded for a medication: active ingredient,
// dosage and form. The brand is left out so that similarity follows the
// clinical content of the product.
func Description(m entities.Medication) string {
	parts := []string{m.ActiveIngredient}
	if m.Dosage != nil {
		parts = append(parts, *m.Dosage)
	}
	parts = append(parts, m.Form)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the OpenAI API.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vector := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vector[i] = float32(v)
		}
		vectors[d.Index] = vector
	}

	return vectors, nil
}

// Build embeds the description of every medication and returns a store in
// the same row order. Batches run concurrently, bounded by workers, and each
// batch writes only its own rows.
func Build(ctx context.Context, embedder Embedder, medications []entities.Medication, batchSize, workers int) (*Store, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = 1
	}

	texts := make([]string, len(medications))
	for i, m := range medications {
		texts[i] = Description(m)
	}

	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			out, err := embedder.Embed(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if len(out) != end-start {
				return fmt.Errorf("batch %d-%d: expected %d vectors, got %d", start, end, end-start, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewStore(vectors)
}
