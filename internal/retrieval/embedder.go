package retrieval

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrNoEngine is returned when no embedding engine is configured, which
// happens when the server runs without LLM credentials.
var ErrNoEngine = errors.New("no embedding engine configured")

// EmbeddingEngine produces an embedding vector for a text. Implemented by
// llm.Client.
type EmbeddingEngine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps an EmbeddingEngine with batching.
type Embedder struct {
	engine EmbeddingEngine
}

// NewEmbedder creates an Embedder using the given engine.
func NewEmbedder(engine EmbeddingEngine) *Embedder {
	return &Embedder{engine: engine}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.engine == nil {
		return nil, ErrNoEngine
	}
	vec, err := e.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.engine == nil {
		return nil, ErrNoEngine
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the engine.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.engine.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
